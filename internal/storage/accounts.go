package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

const accountColumns = `id, owner_id, name, number, card_last4, currency_id, is_default`

func scanAccount(row *sql.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Number, &a.CardLast4, &a.CurrencyID, &a.Default)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountByNumber finds the owner's account with an exactly matching
// account number.
func (s *SQLiteStorage) GetAccountByNumber(ctx context.Context, ownerID int64, number string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(number, "number"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? AND number = ? ORDER BY id LIMIT 1`,
		ownerID, number)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("account by number %q: %w", number, err)
	}
	return a, nil
}

// GetAccountByCard finds the owner's account whose linked card ends with the
// given digits and whose currency matches.
func (s *SQLiteStorage) GetAccountByCard(ctx context.Context, ownerID int64, cardLast4, currencyCode string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.owner_id, a.name, a.number, a.card_last4, a.currency_id, a.is_default
		 FROM accounts a
		 JOIN currencies c ON c.id = a.currency_id
		 WHERE a.owner_id = ? AND a.card_last4 = ? AND c.code = ?
		 ORDER BY a.id LIMIT 1`,
		ownerID, cardLast4, currencyCode)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("account by card %q/%s: %w", cardLast4, currencyCode, err)
	}
	return a, nil
}

// GetDefaultAccountByCard finds the owner's default-flagged account whose
// linked card ends with the given digits.
func (s *SQLiteStorage) GetDefaultAccountByCard(ctx context.Context, ownerID int64, cardLast4 string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE owner_id = ? AND card_last4 = ? AND is_default = 1
		 ORDER BY id LIMIT 1`,
		ownerID, cardLast4)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("default account by card %q: %w", cardLast4, err)
	}
	return a, nil
}

// GetHeaderAccount finds the account the statement header declares: matching
// currency and an account number starting with the header's number.
func (s *SQLiteStorage) GetHeaderAccount(ctx context.Context, ownerID int64, currencyCode, numberPrefix string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(numberPrefix, "numberPrefix"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.owner_id, a.name, a.number, a.card_last4, a.currency_id, a.is_default
		 FROM accounts a
		 JOIN currencies c ON c.id = a.currency_id
		 WHERE a.owner_id = ? AND c.code = ? AND a.number LIKE ? || '%'
		 ORDER BY a.id LIMIT 1`,
		ownerID, currencyCode, numberPrefix)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("header account %s/%s: %w", currencyCode, numberPrefix, err)
	}
	return a, nil
}

// GetBankDefaultAccount finds the owner's last-resort account for a bank,
// identified by name prefix.
func (s *SQLiteStorage) GetBankDefaultAccount(ctx context.Context, ownerID int64, namePrefix string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(namePrefix, "namePrefix"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE owner_id = ? AND name LIKE ? || '%'
		 ORDER BY is_default DESC, id LIMIT 1`,
		ownerID, namePrefix)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("bank default account %q: %w", namePrefix, err)
	}
	return a, nil
}

// GetAccountByNameOrNumber resolves a transfer destination reference, which
// sources write either as an account name or a number.
func (s *SQLiteStorage) GetAccountByNameOrNumber(ctx context.Context, ownerID int64, ref string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(ref, "ref"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE owner_id = ? AND (number = ? OR name = ?)
		 ORDER BY id LIMIT 1`,
		ownerID, ref, ref)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("account by name or number %q: %w", ref, err)
	}
	return a, nil
}

// CreateAccount inserts an account. Used by setup and tests.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account cannot be nil")
	}
	if err := validateOwner(account.OwnerID); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (owner_id, name, number, card_last4, currency_id, is_default)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.OwnerID, account.Name, account.Number, account.CardLast4, account.CurrencyID, account.Default)
	if err != nil {
		return nil, fmt.Errorf("failed to create account %q: %w", account.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account id: %w", err)
	}
	created := *account
	created.ID = id
	return &created, nil
}
