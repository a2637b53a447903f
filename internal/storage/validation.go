package storage

import (
	"context"
	"fmt"

	"github.com/egorv/bankflow/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	return ctx.Err()
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}

func validateOwner(ownerID int64) error {
	if ownerID <= 0 {
		return fmt.Errorf("ownerID must be positive, got %d", ownerID)
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("transaction cannot be nil")
	}
	if err := validateString(txn.ID, "transaction ID"); err != nil {
		return err
	}
	if err := validateOwner(txn.OwnerID); err != nil {
		return err
	}
	switch txn.Type {
	case model.TypeExpense, model.TypeIncome, model.TypeTransfer:
	default:
		return fmt.Errorf("invalid transaction type %q", txn.Type)
	}
	if txn.Type == model.TypeTransfer && txn.ToAccountID == nil {
		return fmt.Errorf("transfer transactions require a destination account")
	}
	if txn.AccountID <= 0 {
		return fmt.Errorf("transaction requires an account")
	}
	if txn.Date.IsZero() || txn.ProcessingDate.IsZero() {
		return fmt.Errorf("transaction requires transaction and processing dates")
	}
	return nil
}
