package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

// InsertTransaction writes one ledger row as its own atomic unit. A
// duplicate of the dedup fingerprint is expected, not exceptional: it is
// reported as created=false and never as an error, so a skipped duplicate
// cannot roll back sibling rows committed earlier in the same batch.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateTransaction(txn); err != nil {
		return false, err
	}

	fingerprint := txn.Fingerprint()

	var categoryID, toAccountID, importID any
	if txn.CategoryID != nil {
		categoryID = *txn.CategoryID
	}
	if txn.ToAccountID != nil {
		toAccountID = *txn.ToAccountID
	}
	if txn.ImportID != "" {
		importID = txn.ImportID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, owner_id, fingerprint, type, category_id,
			amount, currency_id, original_amount, original_currency_id,
			exchange_rate, date, processing_date, place, comment,
			account_id, to_account_id, import_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.OwnerID,
		fingerprint,
		txn.Type,
		categoryID,
		txn.Amount.String(),
		txn.CurrencyID,
		txn.OriginalAmount.String(),
		txn.OriginalCurrencyID,
		txn.ExchangeRate.String(),
		txn.Date.Format("2006-01-02"),
		txn.ProcessingDate.Format("2006-01-02"),
		txn.Place,
		txn.Comment,
		txn.AccountID,
		toAccountID,
		importID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check transaction insert: %w", err)
	}
	return affected > 0, nil
}

const transactionColumns = `id, owner_id, type, category_id, amount, currency_id,
	original_amount, original_currency_id, exchange_rate, date, processing_date,
	place, comment, account_id, to_account_id, import_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(scanner rowScanner) (*model.Transaction, error) {
	var (
		txn                     model.Transaction
		categoryID, toAccountID sql.NullInt64
		importID                sql.NullString
		amount, original, rate  string
	)
	err := scanner.Scan(&txn.ID, &txn.OwnerID, &txn.Type, &categoryID,
		&amount, &txn.CurrencyID, &original, &txn.OriginalCurrencyID, &rate,
		&txn.Date, &txn.ProcessingDate, &txn.Place, &txn.Comment,
		&txn.AccountID, &toAccountID, &importID)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		txn.CategoryID = &categoryID.Int64
	}
	if toAccountID.Valid {
		txn.ToAccountID = &toAccountID.Int64
	}
	txn.ImportID = importID.String

	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("stored amount %q is not a decimal: %w", amount, err)
	}
	if txn.OriginalAmount, err = decimal.NewFromString(original); err != nil {
		return nil, fmt.Errorf("stored original amount %q is not a decimal: %w", original, err)
	}
	if rate != "" {
		if txn.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("stored exchange rate %q is not a decimal: %w", rate, err)
		}
	}
	return &txn, nil
}

// GetUncategorizedByIDs loads the still-uncategorized transactions among the
// given ids, in insertion order. Categorized ones are filtered out so a
// re-delivered categorization task never overwrites an assigned category.
func (s *SQLiteStorage) GetUncategorizedByIDs(ctx context.Context, ids []string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE category_id IS NULL AND id IN (`+placeholders+`)
		 ORDER BY created_at, id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// GetTransactionByID loads a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", id, err)
	}
	return txn, nil
}

// SetTransactionCategory assigns a category to one transaction.
func (s *SQLiteStorage) SetTransactionCategory(ctx context.Context, id string, categoryID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ? WHERE id = ?`, categoryID, id)
	if err != nil {
		return fmt.Errorf("failed to set category on transaction %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check category update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// GetTransactionIDsByImport lists the ids of every row one import created,
// in insertion order.
func (s *SQLiteStorage) GetTransactionIDsByImport(ctx context.Context, importID string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(importID, "importID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE import_id = ? ORDER BY created_at, id`, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for import %s: %w", importID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountTransactionsByImport counts the rows one import created.
func (s *SQLiteStorage) CountTransactionsByImport(ctx context.Context, importID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(importID, "importID"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE import_id = ?`, importID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions for import %s: %w", importID, err)
	}
	return count, nil
}
