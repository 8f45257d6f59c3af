package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// GetCategories returns all categories in display order.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, color, sort_order, is_custom, created_at
		FROM categories
		ORDER BY sort_order, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Color, &cat.Order, &cat.IsCustom, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByID returns a category by its ID, or common.ErrNotFound.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, color, sort_order, is_custom, created_at
		FROM categories
		WHERE id = ?`

	var cat model.Category
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&cat.ID, &cat.Name, &cat.Color, &cat.Order, &cat.IsCustom, &cat.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &cat, nil
}

// CreateCategory inserts a new user-defined category at the end of the
// display order unless an explicit order is set.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}

	if category.Order == 0 {
		var maxOrder sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM categories`).Scan(&maxOrder); err != nil {
			return fmt.Errorf("failed to determine category order: %w", err)
		}
		category.Order = int(maxOrder.Int64) + 1
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, color, sort_order, is_custom, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		category.ID, category.Name, category.Color, category.Order, category.IsCustom, category.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	slog.Info("created category", "id", category.ID, "name", category.Name)
	return nil
}

// UpdateCategory rewrites a category's name and color.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, color = ?
		WHERE id = ?`,
		category.Name, category.Color, category.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %s: %w", category.ID, common.ErrNotFound)
	}

	return nil
}

// ReorderCategories assigns display order following the given ID
// sequence. The sequence must be a full permutation of the category
// table; partial or duplicated lists are rejected so the resulting
// order is always total.
func (s *SQLiteStorage) ReorderCategories(ctx context.Context, orderedIDs []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(orderedIDs) == 0 {
		return fmt.Errorf("%w: orderedIDs", ErrEmptySlice)
	}

	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return fmt.Errorf("%w: %s listed twice", ErrIncompleteOrder, id)
		}
		seen[id] = true
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total); err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if total != len(orderedIDs) {
		return fmt.Errorf("%w: got %d of %d", ErrIncompleteOrder, len(orderedIDs), total)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for i, id := range orderedIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE categories SET sort_order = ? WHERE id = ?`, i, id)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to reorder category %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	return nil
}

// DeleteCategory removes a category. The last remaining category can
// never be deleted; annotations referencing a deleted category keep
// their last-resolved color value.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if count <= 1 {
		return common.ErrLastCategory
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Detach annotations first so they keep their cached color.
	if _, err := tx.ExecContext(ctx,
		`UPDATE annotations SET category_id = NULL WHERE category_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to detach annotations: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category delete: %w", err)
	}

	slog.Info("deleted category", "id", id)
	return nil
}
