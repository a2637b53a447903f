package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS currencies (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					code TEXT NOT NULL UNIQUE,
					name TEXT NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					owner_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					number TEXT NOT NULL DEFAULT '',
					card_last4 TEXT NOT NULL DEFAULT '',
					currency_id INTEGER NOT NULL REFERENCES currencies(id),
					is_default INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_accounts_owner ON accounts(owner_id)`,
				`CREATE INDEX idx_accounts_number ON accounts(owner_id, number)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					owner_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					parent_id INTEGER REFERENCES categories(id),
					categorizable INTEGER NOT NULL DEFAULT 0
				)`,

				`CREATE TABLE IF NOT EXISTS category_mappings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					owner_id INTEGER NOT NULL,
					keyword TEXT NOT NULL,
					mode TEXT NOT NULL CHECK (mode IN ('exact', 'contains')),
					category_id INTEGER NOT NULL REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_category_mappings_owner ON category_mappings(owner_id)`,

				`CREATE TABLE IF NOT EXISTS exchange_rates (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_currency_id INTEGER NOT NULL REFERENCES currencies(id),
					target_currency_id INTEGER NOT NULL REFERENCES currencies(id),
					date DATE NOT NULL,
					rate TEXT NOT NULL
				)`,
				`CREATE INDEX idx_exchange_rates_lookup ON exchange_rates(target_currency_id, date)`,

				`CREATE TABLE IF NOT EXISTS statement_imports (
					id TEXT PRIMARY KEY,
					owner_id INTEGER NOT NULL,
					source TEXT NOT NULL,
					storage_key TEXT NOT NULL,
					status TEXT NOT NULL,
					notes TEXT NOT NULL DEFAULT '',
					processed_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (owner_id, storage_key, source)
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					owner_id INTEGER NOT NULL,
					fingerprint TEXT NOT NULL,
					type TEXT NOT NULL,
					category_id INTEGER REFERENCES categories(id),
					amount TEXT NOT NULL,
					currency_id INTEGER NOT NULL REFERENCES currencies(id),
					original_amount TEXT NOT NULL,
					original_currency_id INTEGER NOT NULL REFERENCES currencies(id),
					exchange_rate TEXT NOT NULL DEFAULT '',
					date DATE NOT NULL,
					processing_date DATE NOT NULL,
					place TEXT NOT NULL DEFAULT '',
					comment TEXT NOT NULL DEFAULT '',
					account_id INTEGER NOT NULL REFERENCES accounts(id),
					to_account_id INTEGER REFERENCES accounts(id),
					import_id TEXT REFERENCES statement_imports(id),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE UNIQUE INDEX idx_transactions_dedup ON transactions(owner_id, fingerprint)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_account ON transactions(account_id)`,
				`CREATE INDEX idx_transactions_import ON transactions(import_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add bank source registry",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS bank_sources (
					code TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE
				)
			`)
			if err != nil {
				return err
			}

			seed := [][2]string{
				{"halyk", "Halyk"},
				{"ziirat", "Ziraat"},
				{"deniz", "Deniz"},
				{"kaspikz", "Kaspi.kz"},
				{"bcc", "BCC.kz"},
				{"ff", "Freedom Finance"},
				{"commbank", "CommBank"},
				{"generic", "Generic CSV"},
			}
			for _, s := range seed {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO bank_sources (code, name) VALUES (?, ?)`,
					s[0], s[1],
				); err != nil {
					return fmt.Errorf("failed to seed bank source %s: %w", s[0], err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add explicit ordering to category mappings",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE category_mappings ADD COLUMN priority INTEGER NOT NULL DEFAULT 0`)
			return err
		},
	},
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
