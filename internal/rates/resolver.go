// Package rates resolves the exchange rate between a transaction's original
// and posted currencies.
package rates

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/service"
)

// FallbackRate is applied whenever no usable rate can be found or derived.
var FallbackRate = decimal.RequireFromString("1.55")

// Resolver answers rate lookups against the stored reference table and
// falls back to FallbackRate when the table has no answer.
type Resolver struct {
	store service.Storage
}

// NewResolver creates a rate resolver backed by the given storage.
func NewResolver(store service.Storage) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the stored rate for the target currency on the given date,
// or FallbackRate when none is stored. Only a real lookup failure is an
// error; an absent rate is a normal answer.
func (r *Resolver) Resolve(ctx context.Context, targetCurrencyID int64, date time.Time) (decimal.Decimal, error) {
	rate, err := r.store.GetExchangeRate(ctx, targetCurrencyID, date)
	if err == nil {
		if rate.Rate.IsZero() {
			return FallbackRate, nil
		}
		return rate.Rate, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return decimal.Zero, err
	}
	slog.Debug("No stored exchange rate, using fallback",
		"target_currency_id", targetCurrencyID,
		"date", date.Format("2006-01-02"),
		"fallback", FallbackRate)
	return FallbackRate, nil
}

// Invert converts a statement-quoted rate into the stored orientation. A
// zero rate cannot be inverted and yields FallbackRate.
func Invert(rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return FallbackRate
	}
	return decimal.NewFromInt(1).Div(rate)
}

// Derive recovers a rate from the two amounts of one transaction. Either
// amount being zero makes the division meaningless and yields FallbackRate.
func Derive(amount, original decimal.Decimal) decimal.Decimal {
	if amount.IsZero() || original.IsZero() {
		return FallbackRate
	}
	return amount.Div(original).Abs()
}
