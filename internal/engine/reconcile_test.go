package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egorv/bankflow/internal/engine"
	"github.com/egorv/bankflow/internal/model"
	"github.com/egorv/bankflow/internal/parser"
	"github.com/egorv/bankflow/internal/rates"
	"github.com/egorv/bankflow/internal/testutil"
)

type reconcileFixture struct {
	db      *testutil.TestDB
	kzt     *model.Currency
	usd     *model.Currency
	account *model.Account
	imp     *model.StatementImport
}

func setupReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	kzt := db.SeedCurrency("KZT", "Kazakhstani tenge")
	usd := db.SeedCurrency("USD", "US dollar")
	account := db.SeedAccount(model.Account{
		OwnerID:    1,
		Name:       "Main KZT",
		Number:     "ACC1",
		CurrencyID: kzt.ID,
	})

	imp, _, err := db.Storage.GetOrCreateImport(ctx, 1, "statement/test.csv", "generic")
	require.NoError(t, err)

	return &reconcileFixture{db: db, kzt: kzt, usd: usd, account: account, imp: imp}
}

func statementDate() time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
}

func TestReconcilePlainExpense(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Storage.PutExchangeRate(ctx, &model.ExchangeRate{
		SourceCurrencyID: f.usd.ID,
		TargetCurrencyID: f.kzt.ID,
		Date:             statementDate(),
		Rate:             decimal.RequireFromString("450"),
	}))

	stmt := &parser.Statement{Records: []parser.Record{{
		Date:          statementDate(),
		Type:          model.TypeExpense,
		AccountNumber: "ACC1",
		Description:   "Rent",
		Amount:        decimal.RequireFromString("-100.50"),
	}}}

	rec := engine.NewReconciler(f.db.Storage)
	result, err := rec.Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, "created 1, skipped 0", result.Summary())

	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	got := txns[0]
	assert.Equal(t, model.TypeExpense, got.Type)
	assert.Equal(t, f.account.ID, got.AccountID)
	assert.Equal(t, f.kzt.ID, got.CurrencyID)
	assert.Equal(t, f.usd.ID, got.OriginalCurrencyID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("-100.50")), "amount %s", got.Amount)
	assert.True(t, got.ExchangeRate.Equal(decimal.RequireFromString("450")), "rate %s", got.ExchangeRate)
	assert.True(t, got.OriginalAmount.Equal(decimal.RequireFromString("-0.22")), "original %s", got.OriginalAmount)
	assert.Nil(t, got.ToAccountID)
}

func TestReconcileDiagnosticsUseSourceRows(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	// Rows 2 through 6 of the export were dropped during parsing; the
	// surviving records still carry their source row numbers.
	stmt := &parser.Statement{Records: []parser.Record{
		{
			Row:           1,
			Date:          statementDate(),
			Type:          model.TypeIncome,
			AccountNumber: "ACC1",
			Amount:        decimal.RequireFromString("300"),
		},
		{
			Row:           7,
			Date:          statementDate(),
			Type:          model.TypeTransfer,
			AccountNumber: "ACC1",
			ToAccount:     "NOSUCH",
			Amount:        decimal.RequireFromString("-100"),
		},
	}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0], "Row 7")
}

func TestReconcileQuotedLegsDeriveRate(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	// A stored rate must lose to the legs the export itself quotes.
	require.NoError(t, f.db.Storage.PutExchangeRate(ctx, &model.ExchangeRate{
		SourceCurrencyID: f.usd.ID,
		TargetCurrencyID: f.kzt.ID,
		Date:             statementDate(),
		Rate:             decimal.RequireFromString("449.55"),
	}))

	stmt := &parser.Statement{Records: []parser.Record{{
		Date:           statementDate(),
		Type:           model.TypeExpense,
		AccountNumber:  "ACC1",
		Description:    "Card purchase abroad",
		Amount:         decimal.RequireFromString("-4500"),
		OriginalAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("-10"), Valid: true},
	}}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	assert.Empty(t, result.Diagnostics)

	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	got := txns[0]
	assert.True(t, got.OriginalAmount.Equal(decimal.RequireFromString("-10")), "original %s", got.OriginalAmount)
	assert.True(t, got.ExchangeRate.Equal(decimal.RequireFromString("450")), "rate %s", got.ExchangeRate)
}

func TestReconcileSameCurrencyUnitRate(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	usdAccount := f.db.SeedAccount(model.Account{
		OwnerID:    1,
		Name:       "Dollar account",
		Number:     "USD1",
		CurrencyID: f.usd.ID,
	})

	stmt := &parser.Statement{Records: []parser.Record{{
		Date:          statementDate(),
		Type:          model.TypeIncome,
		AccountNumber: "USD1",
		Amount:        decimal.RequireFromString("250"),
	}}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, usdAccount.ID, txns[0].AccountID)
	assert.True(t, txns[0].ExchangeRate.Equal(decimal.NewFromInt(1)))
	assert.True(t, txns[0].OriginalAmount.Equal(txns[0].Amount))
}

func TestReconcileMissingRateUsesFallback(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	stmt := &parser.Statement{Records: []parser.Record{{
		Date:          statementDate(),
		Type:          model.TypeExpense,
		AccountNumber: "ACC1",
		Amount:        decimal.RequireFromString("-155"),
	}}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].ExchangeRate.Equal(rates.FallbackRate), "rate %s", txns[0].ExchangeRate)
	assert.True(t, txns[0].OriginalAmount.Equal(decimal.RequireFromString("-100")),
		"original %s", txns[0].OriginalAmount)
}

func TestReconcileCurrencyPair(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	stmt := &parser.Statement{Records: []parser.Record{{
		Date:           statementDate(),
		Type:           model.TypeExpense,
		AccountNumber:  "ACC1",
		CurrencyPair:   "KZT-USD",
		ConversionRate: decimal.NewNullDecimal(decimal.RequireFromString("0.002")),
		Amount:         decimal.RequireFromString("-1000"),
	}}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	got := txns[0]
	assert.Equal(t, f.kzt.ID, got.CurrencyID)
	assert.Equal(t, f.usd.ID, got.OriginalCurrencyID)
	// The statement quotes the inverse rate.
	assert.True(t, got.ExchangeRate.Equal(decimal.RequireFromString("500")), "rate %s", got.ExchangeRate)
	assert.True(t, got.OriginalAmount.Equal(decimal.RequireFromString("-2")), "original %s", got.OriginalAmount)
}

func TestReconcileZeroPairRateUsesFallback(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	stmt := &parser.Statement{Records: []parser.Record{{
		Date:           statementDate(),
		Type:           model.TypeExpense,
		AccountNumber:  "ACC1",
		CurrencyPair:   "USD-KZT",
		ConversionRate: decimal.NewNullDecimal(decimal.Zero),
		Amount:         decimal.RequireFromString("-15.50"),
	}}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].ExchangeRate.Equal(rates.FallbackRate), "rate %s", txns[0].ExchangeRate)
}

func TestReconcileTransfer(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	destination := f.db.SeedAccount(model.Account{
		OwnerID:    1,
		Name:       "Savings",
		Number:     "ACC2",
		CurrencyID: f.kzt.ID,
	})

	stmt := &parser.Statement{Records: []parser.Record{
		{
			Date:          statementDate(),
			Type:          model.TypeTransfer,
			AccountNumber: "ACC1",
			ToAccount:     "ACC2",
			Amount:        decimal.RequireFromString("-5000"),
		},
		{
			Date:          statementDate(),
			Type:          model.TypeTransfer,
			AccountNumber: "ACC1",
			ToAccount:     "NOSUCH",
			Amount:        decimal.RequireFromString("-100"),
		},
	}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0], "Row 2")
	assert.Contains(t, result.Diagnostics[0], "NOSUCH")

	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.NotNil(t, txns[0].ToAccountID)
	assert.Equal(t, destination.ID, *txns[0].ToAccountID)
	assert.Equal(t, f.kzt.ID, txns[0].CurrencyID)
	assert.Equal(t, f.kzt.ID, txns[0].OriginalCurrencyID)
}

func TestReconcileAccountResolutionChain(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	t.Run("card last four", func(t *testing.T) {
		card := f.db.SeedAccount(model.Account{
			OwnerID:    1,
			Name:       "Card account",
			CardLast4:  "9876",
			CurrencyID: f.kzt.ID,
			Default:    true,
		})

		stmt := &parser.Statement{Records: []parser.Record{{
			Date:          statementDate(),
			Type:          model.TypeExpense,
			AccountNumber: "*9876",
			Amount:        decimal.RequireFromString("-10"),
		}}}

		result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
		require.NoError(t, err)
		require.Equal(t, 1, result.Created)

		txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
		require.NoError(t, err)
		assert.Equal(t, card.ID, txns[len(txns)-1].AccountID)
	})

	t.Run("header account", func(t *testing.T) {
		stmt := &parser.Statement{
			Header: parser.Header{AccountNumber: "ACC1", Currency: "KZT"},
			Records: []parser.Record{{
				Date:   statementDate(),
				Type:   model.TypeExpense,
				Amount: decimal.RequireFromString("-20"),
			}},
		}

		result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
		require.NoError(t, err)
		require.Equal(t, 1, result.Created)

		txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
		require.NoError(t, err)
		assert.Equal(t, f.account.ID, txns[len(txns)-1].AccountID)
	})

	t.Run("unresolvable row is a soft skip", func(t *testing.T) {
		stmt := &parser.Statement{Records: []parser.Record{{
			Date:          statementDate(),
			Type:          model.TypeExpense,
			AccountNumber: "UNKNOWN",
			Amount:        decimal.RequireFromString("-30"),
		}}}

		result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Created)
		assert.Equal(t, 1, result.Skipped)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "Row 1")
	})
}

func TestReconcileIdempotent(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	stmt := &parser.Statement{Records: []parser.Record{
		{
			Date:          statementDate(),
			Type:          model.TypeExpense,
			AccountNumber: "ACC1",
			Description:   "Rent",
			Amount:        decimal.RequireFromString("-100.50"),
		},
		{
			Date:          statementDate(),
			Type:          model.TypeIncome,
			AccountNumber: "ACC1",
			Description:   "Salary",
			Amount:        decimal.RequireFromString("500000"),
		},
	}}

	rec := engine.NewReconciler(f.db.Storage)

	first, err := rec.Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.Skipped)

	second, err := rec.Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Skipped)

	count, err := f.db.Storage.CountTransactionsByImport(ctx, f.imp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReconcileAppliesCategoryRules(t *testing.T) {
	f := setupReconcileFixture(t)
	ctx := context.Background()

	parent := f.db.SeedCategory(model.Category{OwnerID: 1, Name: "Expenses"})
	food := f.db.SeedCategory(model.Category{
		OwnerID: 1, Name: "Food", ParentID: &parent.ID, Categorizable: true,
	})
	f.db.SeedMapping(model.CategoryMapping{
		OwnerID: 1, Keyword: "magnum", Mode: model.MatchContains, CategoryID: food.ID,
	})

	stmt := &parser.Statement{Records: []parser.Record{{
		Date:          statementDate(),
		Type:          model.TypeExpense,
		AccountNumber: "ACC1",
		Place:         "MAGNUM ALMATY",
		Amount:        decimal.RequireFromString("-4500"),
	}}}

	result, err := engine.NewReconciler(f.db.Storage).Reconcile(ctx, 1, f.imp, stmt)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	// The rule already assigned a category, so nothing is left to classify.
	txns, err := f.db.Storage.GetUncategorizedByIDs(ctx, allTransactionIDs(t, f))
	require.NoError(t, err)
	assert.Empty(t, txns)
}

// allTransactionIDs lists every transaction id committed under the fixture
// import so tests can load rows back through the uncategorized query.
func allTransactionIDs(t *testing.T, f *reconcileFixture) []string {
	t.Helper()
	ids, err := f.db.Storage.GetTransactionIDsByImport(context.Background(), f.imp.ID)
	require.NoError(t, err)
	return ids
}
