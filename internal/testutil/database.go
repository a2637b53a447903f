// Package testutil provides shared test fixtures for the bankflow project.
// It offers an in-memory database with automatic migration and cleanup, plus
// seed helpers for the reference data the reconciliation tests depend on.
package testutil

import (
	"context"
	"testing"

	"github.com/egorv/bankflow/internal/model"
	"github.com/egorv/bankflow/internal/storage"
)

// TestDB wraps an in-memory storage with seed helpers bound to a test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. It automatically runs
// migrations and registers cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedCurrency inserts a currency and returns it.
func (db *TestDB) SeedCurrency(code, name string) *model.Currency {
	db.t.Helper()
	cur, err := db.Storage.CreateCurrency(context.Background(), code, name)
	if err != nil {
		db.t.Fatalf("failed to seed currency %q: %v", code, err)
	}
	return cur
}

// SeedAccount inserts an account and returns it.
func (db *TestDB) SeedAccount(account model.Account) *model.Account {
	db.t.Helper()
	created, err := db.Storage.CreateAccount(context.Background(), &account)
	if err != nil {
		db.t.Fatalf("failed to seed account %q: %v", account.Name, err)
	}
	return created
}

// SeedCategory inserts a category and returns it.
func (db *TestDB) SeedCategory(category model.Category) *model.Category {
	db.t.Helper()
	created, err := db.Storage.CreateCategory(context.Background(), &category)
	if err != nil {
		db.t.Fatalf("failed to seed category %q: %v", category.Name, err)
	}
	return created
}

// SeedMapping inserts a keyword to category mapping and returns it.
func (db *TestDB) SeedMapping(mapping model.CategoryMapping) *model.CategoryMapping {
	db.t.Helper()
	created, err := db.Storage.CreateCategoryMapping(context.Background(), &mapping)
	if err != nil {
		db.t.Fatalf("failed to seed mapping %q: %v", mapping.Keyword, err)
	}
	return created
}
