package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/egorv/bankflow/internal/common"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize [transaction-id...]",
		Short: "Categorize transactions with the external classifier",
		Long: `Send uncategorized transactions to the classifier and persist the
assigned categories. Transactions the rule matcher already categorized are
left untouched.

Pass transaction ids, or --import to categorize everything one import
created.`,
		RunE: runCategorize,
	}

	cmd.Flags().String("import", "", "categorize the transactions of this import")

	return cmd
}

func runCategorize(cmd *cobra.Command, args []string) error {
	importID, _ := cmd.Flags().GetString("import")
	if importID == "" && len(args) == 0 {
		return fmt.Errorf("pass transaction ids or --import")
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	classifier, err := initClassifier()
	if err != nil {
		return err
	}

	ids := args
	if importID != "" {
		fromImport, err := store.GetTransactionIDsByImport(ctx, importID)
		if err != nil {
			return err
		}
		ids = append(ids, fromImport...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("import %s: %w", importID, common.ErrNoTransactions)
	}

	pipe := initPipeline(store, nil, classifier)
	status, err := pipe.CategorizeBatch(ctx, ids)
	if err != nil {
		return err
	}

	slog.Info("Categorization finished", "status", status)
	return nil
}
