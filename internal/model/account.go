package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a named balance holder in a single currency. The core reads
// accounts but never mutates them.
type Account struct {
	Name       string
	Number     string
	CardLast4  string
	ID         int64
	OwnerID    int64
	CurrencyID int64
	Default    bool
}

// Currency is an ISO-like code plus display name, referenced by code lookup.
type Currency struct {
	Code string
	Name string
	ID   int64
}

// ExchangeRate maps (source, target, date) to a decimal rate. The table is
// append-only reference data.
type ExchangeRate struct {
	Date             time.Time
	Rate             decimal.Decimal
	ID               int64
	SourceCurrencyID int64
	TargetCurrencyID int64
}
