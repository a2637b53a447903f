package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

func scanImport(row *sql.Row) (*model.StatementImport, error) {
	var (
		imp         model.StatementImport
		processedAt sql.NullTime
	)
	err := row.Scan(&imp.ID, &imp.OwnerID, &imp.Source, &imp.StorageKey,
		&imp.Status, &imp.Notes, &processedAt, &imp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		imp.ProcessedAt = &processedAt.Time
	}
	return &imp, nil
}

const importColumns = `id, owner_id, source, storage_key, status, notes, processed_at, created_at`

// GetOrCreateImport finds or creates the import record for an uploaded file.
// The lookup key (owner, storage key, source) makes repeated delivery of the
// same upload task a no-op: the second call returns the existing record and
// created=false.
func (s *SQLiteStorage) GetOrCreateImport(ctx context.Context, ownerID int64, storageKey, source string) (*model.StatementImport, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, false, err
	}
	if err := validateString(storageKey, "storageKey"); err != nil {
		return nil, false, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, false, err
	}

	id := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO statement_imports (id, owner_id, source, storage_key, status)
		 VALUES (?, ?, ?, ?, ?)`,
		id, ownerID, source, storageKey, model.ImportPending)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create import: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check import insert: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM statement_imports
		 WHERE owner_id = ? AND storage_key = ? AND source = ?`,
		ownerID, storageKey, source)
	imp, err := scanImport(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load import: %w", err)
	}
	return imp, affected > 0, nil
}

// GetImport loads one import by id.
func (s *SQLiteStorage) GetImport(ctx context.Context, id string) (*model.StatementImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM statement_imports WHERE id = ?`, id)
	imp, err := scanImport(row)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", id, err)
	}
	return imp, nil
}

// ListPendingImports returns imports still waiting for a worker, oldest
// first.
func (s *SQLiteStorage) ListPendingImports(ctx context.Context) ([]model.StatementImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+importColumns+` FROM statement_imports
		 WHERE status = ? ORDER BY created_at, id`, model.ImportPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var imports []model.StatementImport
	for rows.Next() {
		var (
			imp         model.StatementImport
			processedAt sql.NullTime
		)
		err := rows.Scan(&imp.ID, &imp.OwnerID, &imp.Source, &imp.StorageKey,
			&imp.Status, &imp.Notes, &processedAt, &imp.CreatedAt)
		if err != nil {
			return nil, err
		}
		if processedAt.Valid {
			imp.ProcessedAt = &processedAt.Time
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// SetImportStatus transitions an import and records the operator-visible
// notes. Terminal states also stamp processed_at.
func (s *SQLiteStorage) SetImportStatus(ctx context.Context, id string, status model.ImportStatus, notes string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	var processedAt any
	if status == model.ImportCompleted || status == model.ImportFailed {
		processedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE statement_imports
		 SET status = ?, notes = ?, processed_at = COALESCE(?, processed_at)
		 WHERE id = ?`,
		status, notes, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set import %s status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check import update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("import %s: %w", id, common.ErrNotFound)
	}
	return nil
}
