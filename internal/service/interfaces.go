// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/egorv/bankflow/internal/model"
)

// Storage defines the contract for the persistence layer. The reconciliation
// engine and the ingestion pipeline depend on this interface, never on the
// sqlite implementation directly.
type Storage interface {
	// Currency operations
	GetCurrencyByCode(ctx context.Context, code string) (*model.Currency, error)
	GetCurrencyByID(ctx context.Context, id int64) (*model.Currency, error)

	// Account operations
	GetAccountByNumber(ctx context.Context, ownerID int64, number string) (*model.Account, error)
	GetAccountByCard(ctx context.Context, ownerID int64, cardLast4, currencyCode string) (*model.Account, error)
	GetDefaultAccountByCard(ctx context.Context, ownerID int64, cardLast4 string) (*model.Account, error)
	GetHeaderAccount(ctx context.Context, ownerID int64, currencyCode, numberPrefix string) (*model.Account, error)
	GetBankDefaultAccount(ctx context.Context, ownerID int64, namePrefix string) (*model.Account, error)
	GetAccountByNameOrNumber(ctx context.Context, ownerID int64, ref string) (*model.Account, error)

	// Exchange rate operations
	GetExchangeRate(ctx context.Context, targetCurrencyID int64, date time.Time) (*model.ExchangeRate, error)
	PutExchangeRate(ctx context.Context, rate *model.ExchangeRate) error

	// Category operations
	GetCategoryMappings(ctx context.Context, ownerID int64) ([]model.CategoryMapping, error)
	GetCategorizableCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)

	// Statement import operations
	GetOrCreateImport(ctx context.Context, ownerID int64, storageKey, source string) (*model.StatementImport, bool, error)
	GetImport(ctx context.Context, id string) (*model.StatementImport, error)
	ListPendingImports(ctx context.Context) ([]model.StatementImport, error)
	SetImportStatus(ctx context.Context, id string, status model.ImportStatus, notes string) error

	// Transaction operations
	InsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error)
	GetUncategorizedByIDs(ctx context.Context, ids []string) ([]model.Transaction, error)
	GetTransactionIDsByImport(ctx context.Context, importID string) ([]string, error)
	SetTransactionCategory(ctx context.Context, id string, categoryID int64) error
	CountTransactionsByImport(ctx context.Context, importID string) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations that may fail
// transiently. It is the pipeline's explicit retry policy object.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Classifier is the boundary to the external text model. It receives a
// newline-delimited prompt and returns the raw labeled response.
type Classifier interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BlobStore is the byte get/put interface to the object store.
type BlobStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
}
