package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

// GetExchangeRate returns the stored rate for the target currency on the
// given date. The table is append-only; the most recently written row wins.
func (s *SQLiteStorage) GetExchangeRate(ctx context.Context, targetCurrencyID int64, date time.Time) (*model.ExchangeRate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		r       model.ExchangeRate
		rateStr string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_currency_id, target_currency_id, date, rate
		 FROM exchange_rates
		 WHERE target_currency_id = ? AND date = ?
		 ORDER BY id DESC LIMIT 1`,
		targetCurrencyID, date.Format("2006-01-02"),
	).Scan(&r.ID, &r.SourceCurrencyID, &r.TargetCurrencyID, &r.Date, &rateStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exchange rate for currency %d on %s: %w",
			targetCurrencyID, date.Format("2006-01-02"), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}

	r.Rate, err = decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("stored rate %q is not a decimal: %w", rateStr, err)
	}
	return &r, nil
}

// PutExchangeRate appends a rate row.
func (s *SQLiteStorage) PutExchangeRate(ctx context.Context, rate *model.ExchangeRate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rate == nil {
		return fmt.Errorf("rate cannot be nil")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchange_rates (source_currency_id, target_currency_id, date, rate)
		 VALUES (?, ?, ?, ?)`,
		rate.SourceCurrencyID, rate.TargetCurrencyID, rate.Date.Format("2006-01-02"), rate.Rate.String())
	if err != nil {
		return fmt.Errorf("failed to put exchange rate: %w", err)
	}
	return nil
}
