package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [import-id...]",
		Short: "Parse and reconcile stored statement imports",
		Long: `Run the reconciliation pipeline over stored imports.

Given import ids, each is processed in turn. With --pending, every import
still waiting for a worker is processed instead.`,
		RunE: runProcess,
	}

	cmd.Flags().Bool("pending", false, "process every pending import")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	pending, _ := cmd.Flags().GetBool("pending")
	if !pending && len(args) == 0 {
		return fmt.Errorf("pass import ids or --pending")
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	blobs, err := initBlobStore(ctx)
	if err != nil {
		return err
	}

	pipe := initPipeline(store, blobs, nil)
	bucket := viper.GetString("storage.bucket")

	ids := args
	if pending {
		imports, err := store.ListPendingImports(ctx)
		if err != nil {
			return err
		}
		for _, imp := range imports {
			ids = append(ids, imp.ID)
		}
	}
	if len(ids) == 0 {
		slog.Info("No imports to process")
		return nil
	}

	var failed int
	for _, id := range ids {
		summary, err := pipe.ProcessImport(ctx, bucket, id)
		if err != nil {
			failed++
			slog.Error("Import failed", "import_id", id, "error", err)
			continue
		}
		slog.Info("Import processed", "import_id", id, "summary", summary)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, len(ids))
	}
	return nil
}
