package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
	"github.com/egorv/bankflow/internal/testutil"
)

type txnFixture struct {
	db      *testutil.TestDB
	kzt     *model.Currency
	usd     *model.Currency
	account *model.Account
}

func setupTxnFixture(t *testing.T) *txnFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	kzt := db.SeedCurrency("KZT", "Kazakhstani tenge")
	usd := db.SeedCurrency("USD", "US dollar")
	account := db.SeedAccount(model.Account{
		OwnerID:    1,
		Name:       "BCC card",
		CardLast4:  "1234",
		CurrencyID: kzt.ID,
	})
	return &txnFixture{db: db, kzt: kzt, usd: usd, account: account}
}

func (f *txnFixture) newTransaction() *model.Transaction {
	return &model.Transaction{
		ID:                 uuid.NewString(),
		OwnerID:            1,
		Type:               model.TypeExpense,
		Date:               time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ProcessingDate:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Amount:             decimal.RequireFromString("-4500.50"),
		CurrencyID:         f.kzt.ID,
		OriginalAmount:     decimal.RequireFromString("-10.01"),
		OriginalCurrencyID: f.usd.ID,
		ExchangeRate:       decimal.RequireFromString("449.55"),
		Place:              "MAGNUM ALMATY",
		Comment:            "Retail purchase",
		AccountID:          f.account.ID,
	}
}

func TestInsertTransactionDeduplication(t *testing.T) {
	f := setupTxnFixture(t)
	ctx := context.Background()

	created, err := f.db.Storage.InsertTransaction(ctx, f.newTransaction())
	require.NoError(t, err)
	assert.True(t, created)

	// Identical dedup tuple with a fresh id is a silent skip, not an error.
	created, err = f.db.Storage.InsertTransaction(ctx, f.newTransaction())
	require.NoError(t, err)
	assert.False(t, created)

	// Fields outside the tuple do not defeat deduplication.
	differentPlace := f.newTransaction()
	differentPlace.Place = "SOMEWHERE ELSE"
	created, err = f.db.Storage.InsertTransaction(ctx, differentPlace)
	require.NoError(t, err)
	assert.False(t, created)

	// Any tuple field change makes a new row.
	differentAmount := f.newTransaction()
	differentAmount.Amount = decimal.RequireFromString("-4500.51")
	created, err = f.db.Storage.InsertTransaction(ctx, differentAmount)
	require.NoError(t, err)
	assert.True(t, created)

	differentComment := f.newTransaction()
	differentComment.Comment = "Retail purchase #2"
	created, err = f.db.Storage.InsertTransaction(ctx, differentComment)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestInsertTransactionScopedToOwner(t *testing.T) {
	f := setupTxnFixture(t)
	ctx := context.Background()

	created, err := f.db.Storage.InsertTransaction(ctx, f.newTransaction())
	require.NoError(t, err)
	assert.True(t, created)

	// Same tuple under another owner is not a duplicate.
	other := f.newTransaction()
	other.OwnerID = 2
	created, err = f.db.Storage.InsertTransaction(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestInsertTransactionValidation(t *testing.T) {
	f := setupTxnFixture(t)
	ctx := context.Background()

	transfer := f.newTransaction()
	transfer.Type = model.TypeTransfer
	_, err := f.db.Storage.InsertTransaction(ctx, transfer)
	require.Error(t, err, "transfer without destination must be rejected")

	transfer.ToAccountID = &f.account.ID
	created, err := f.db.Storage.InsertTransaction(ctx, transfer)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestTransactionRoundTrip(t *testing.T) {
	f := setupTxnFixture(t)
	ctx := context.Background()

	txn := f.newTransaction()
	_, err := f.db.Storage.InsertTransaction(ctx, txn)
	require.NoError(t, err)

	got, err := f.db.Storage.GetTransactionByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.Type, got.Type)
	assert.Equal(t, txn.Place, got.Place)
	assert.True(t, got.Amount.Equal(txn.Amount), "got amount %s", got.Amount)
	assert.True(t, got.OriginalAmount.Equal(txn.OriginalAmount))
	assert.True(t, got.ExchangeRate.Equal(txn.ExchangeRate))
	assert.Equal(t, txn.Date, got.Date)
	assert.Equal(t, txn.ProcessingDate, got.ProcessingDate)
	assert.Nil(t, got.CategoryID)
}

func TestCategorizationQueries(t *testing.T) {
	f := setupTxnFixture(t)
	ctx := context.Background()

	parent := f.db.SeedCategory(model.Category{OwnerID: 1, Name: "Expenses"})
	food := f.db.SeedCategory(model.Category{
		OwnerID: 1, Name: "Food", ParentID: &parent.ID, Categorizable: true,
	})

	first := f.newTransaction()
	second := f.newTransaction()
	second.Comment = "another row"

	for _, txn := range []*model.Transaction{first, second} {
		created, err := f.db.Storage.InsertTransaction(ctx, txn)
		require.NoError(t, err)
		require.True(t, created)
	}

	uncategorized, err := f.db.Storage.GetUncategorizedByIDs(ctx, []string{first.ID, second.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, uncategorized, 2)

	require.NoError(t, f.db.Storage.SetTransactionCategory(ctx, first.ID, food.ID))

	uncategorized, err = f.db.Storage.GetUncategorizedByIDs(ctx, []string{first.ID, second.ID})
	require.NoError(t, err)
	require.Len(t, uncategorized, 1)
	assert.Equal(t, second.ID, uncategorized[0].ID)

	got, err := f.db.Storage.GetTransactionByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, food.ID, *got.CategoryID)

	err = f.db.Storage.SetTransactionCategory(ctx, "missing", food.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	empty, err := f.db.Storage.GetUncategorizedByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCountTransactionsByImport(t *testing.T) {
	f := setupTxnFixture(t)
	ctx := context.Background()

	imp, _, err := f.db.Storage.GetOrCreateImport(ctx, 1, "statement/march.csv", "bcc")
	require.NoError(t, err)

	first := f.newTransaction()
	first.ImportID = imp.ID
	second := f.newTransaction()
	second.ImportID = imp.ID
	second.Comment = "second row"

	for _, txn := range []*model.Transaction{first, second} {
		_, err := f.db.Storage.InsertTransaction(ctx, txn)
		require.NoError(t, err)
	}

	count, err := f.db.Storage.CountTransactionsByImport(ctx, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = f.db.Storage.CountTransactionsByImport(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
