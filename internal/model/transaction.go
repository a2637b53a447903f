package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType describes the money-flow shape of a ledger entry.
type TransactionType string

const (
	// TypeExpense is money leaving an account.
	TypeExpense TransactionType = "expense"
	// TypeIncome is money arriving at an account.
	TypeIncome TransactionType = "income"
	// TypeTransfer is money moving between two owned accounts.
	TypeTransfer TransactionType = "transfer"
)

// Transaction is one canonical ledger entry. The posted leg (Amount,
// CurrencyID) is expressed in the owning account's currency; the original
// leg (OriginalAmount, OriginalCurrencyID) is the transaction's native
// currency and may equal the posted leg.
type Transaction struct {
	Date               time.Time
	ProcessingDate     time.Time
	ID                 string
	Type               TransactionType
	Place              string
	Comment            string
	ImportID           string
	Amount             decimal.Decimal
	OriginalAmount     decimal.Decimal
	ExchangeRate       decimal.Decimal
	OwnerID            int64
	AccountID          int64
	CurrencyID         int64
	OriginalCurrencyID int64
	CategoryID         *int64
	ToAccountID        *int64
}

// Fingerprint hashes the deduplication tuple. Two transactions with the same
// fingerprint for the same owner are the same statement row; fields outside
// the tuple (category, place, exchange rate) never affect it.
func (t *Transaction) Fingerprint() string {
	data := fmt.Sprintf("%d:%s:%s:%s:%s:%d:%s:%d:%s",
		t.AccountID,
		t.Type,
		t.Date.Format("2006-01-02"),
		t.ProcessingDate.Format("2006-01-02"),
		t.Amount.String(),
		t.CurrencyID,
		t.OriginalAmount.String(),
		t.OriginalCurrencyID,
		t.Comment)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// IsTransfer reports whether the entry moves money between owned accounts.
func (t *Transaction) IsTransfer() bool {
	return t.Type == TypeTransfer
}
