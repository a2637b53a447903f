package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

// GetCategoryMappings returns the owner's place-to-category rules in
// (priority, id) order. That order is the matcher's tie-break: callers see a
// stable, user-controlled rule sequence instead of retrieval order.
func (s *SQLiteStorage) GetCategoryMappings(ctx context.Context, ownerID int64) ([]model.CategoryMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, keyword, mode, priority, category_id
		 FROM category_mappings
		 WHERE owner_id = ?
		 ORDER BY priority, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get category mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.CategoryMapping
	for rows.Next() {
		var m model.CategoryMapping
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Keyword, &m.Mode, &m.Priority, &m.CategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan category mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// GetCategorizableCategories returns the categories offered to the external
// classifier: child categories flagged for categorization.
func (s *SQLiteStorage) GetCategorizableCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, parent_id, categorizable
		 FROM categories
		 WHERE categorizable = 1 AND parent_id IS NOT NULL
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get categorizable categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		var parentID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &parentID, &c.Categorizable); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if parentID.Valid {
			c.ParentID = &parentID.Int64
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategoryByID looks up one category.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var c model.Category
	var parentID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, parent_id, categorizable FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &parentID, &c.Categorizable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category %d: %w", id, err)
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	return &c, nil
}

// CreateCategory inserts a category. Used by setup and tests.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("category cannot be nil")
	}

	var parentID any
	if category.ParentID != nil {
		parentID = *category.ParentID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (owner_id, name, parent_id, categorizable) VALUES (?, ?, ?, ?)`,
		category.OwnerID, category.Name, parentID, category.Categorizable)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", category.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}
	created := *category
	created.ID = id
	return &created, nil
}

// CreateCategoryMapping inserts a rule. Used by setup and tests.
func (s *SQLiteStorage) CreateCategoryMapping(ctx context.Context, mapping *model.CategoryMapping) (*model.CategoryMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, fmt.Errorf("mapping cannot be nil")
	}
	if err := validateString(mapping.Keyword, "keyword"); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO category_mappings (owner_id, keyword, mode, priority, category_id)
		 VALUES (?, ?, ?, ?, ?)`,
		mapping.OwnerID, mapping.Keyword, mapping.Mode, mapping.Priority, mapping.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to create category mapping %q: %w", mapping.Keyword, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping id: %w", err)
	}
	created := *mapping
	created.ID = id
	return &created, nil
}
