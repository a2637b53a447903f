package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

// GetCurrencyByCode looks up a currency by its ISO-like code.
func (s *SQLiteStorage) GetCurrencyByCode(ctx context.Context, code string) (*model.Currency, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}

	var c model.Currency
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name FROM currencies WHERE code = ?`, code,
	).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("currency %q: %w", code, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency %q: %w", code, err)
	}
	return &c, nil
}

// GetCurrencyByID looks up a currency by primary key.
func (s *SQLiteStorage) GetCurrencyByID(ctx context.Context, id int64) (*model.Currency, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var c model.Currency
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name FROM currencies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("currency id %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency %d: %w", id, err)
	}
	return &c, nil
}

// CreateCurrency inserts a currency. Used by setup and tests.
func (s *SQLiteStorage) CreateCurrency(ctx context.Context, code, name string) (*model.Currency, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO currencies (code, name) VALUES (?, ?)`, code, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create currency %q: %w", code, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get currency id: %w", err)
	}
	return &model.Currency{ID: id, Code: code, Name: name}, nil
}
