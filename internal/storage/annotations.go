package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

const annotationColumns = `id, namespace, page_number, type, category_id, color, selected_text, signature, note, created_at, updated_at`

// SaveAnnotation persists a single annotation record.
func (s *SQLiteStorage) SaveAnnotation(ctx context.Context, namespace string, annotation *model.Annotation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(namespace, "namespace"); err != nil {
		return err
	}
	if err := validateAnnotation(annotation); err != nil {
		return err
	}

	sig, err := json.Marshal(annotation.Signature)
	if err != nil {
		return fmt.Errorf("failed to encode signature: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO annotations
		(id, namespace, page_number, type, category_id, color, selected_text, signature, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		annotation.ID, namespace, annotation.PageNumber, string(annotation.Type),
		nullable(annotation.CategoryID), annotation.Color, annotation.Text,
		string(sig), nullable(annotation.Note),
		annotation.CreatedAt, annotation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save annotation: %w", err)
	}

	slog.Debug("saved annotation", "id", annotation.ID, "page", annotation.PageNumber)
	return nil
}

// SaveAnnotations persists a batch of annotations in a single transaction.
func (s *SQLiteStorage) SaveAnnotations(ctx context.Context, namespace string, annotations []model.Annotation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(namespace, "namespace"); err != nil {
		return err
	}
	if err := validateAnnotations(annotations); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO annotations
		(id, namespace, page_number, type, category_id, color, selected_text, signature, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range annotations {
		a := &annotations[i]
		sig, sigErr := json.Marshal(a.Signature)
		if sigErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to encode signature for %s: %w", a.ID, sigErr)
		}
		if _, execErr := stmt.ExecContext(ctx,
			a.ID, namespace, a.PageNumber, string(a.Type),
			nullable(a.CategoryID), a.Color, a.Text,
			string(sig), nullable(a.Note), a.CreatedAt, a.UpdatedAt); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save annotation %s: %w", a.ID, execErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit annotations: %w", err)
	}

	slog.Debug("saved annotations", "count", len(annotations))
	return nil
}

// GetAnnotations returns all annotations in a document namespace,
// ordered by page then creation time.
func (s *SQLiteStorage) GetAnnotations(ctx context.Context, namespace string) ([]model.Annotation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(namespace, "namespace"); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + annotationColumns + `
		FROM annotations
		WHERE namespace = ?
		ORDER BY page_number, created_at`

	rows, err := s.db.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	return scanAnnotations(rows)
}

// GetAnnotationsByPage returns the annotations belonging to one page.
func (s *SQLiteStorage) GetAnnotationsByPage(ctx context.Context, namespace string, pageNumber int) ([]model.Annotation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(namespace, "namespace"); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + annotationColumns + `
		FROM annotations
		WHERE namespace = ? AND page_number = ?
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, namespace, pageNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations by page: %w", err)
	}
	defer rows.Close()

	return scanAnnotations(rows)
}

// GetAnnotationByID returns one annotation, or common.ErrNotFound.
func (s *SQLiteStorage) GetAnnotationByID(ctx context.Context, namespace, id string) (*model.Annotation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + annotationColumns + `
		FROM annotations
		WHERE namespace = ? AND id = ?`

	row := s.db.QueryRowContext(ctx, query, namespace, id)
	annotation, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query annotation: %w", err)
	}
	return annotation, nil
}

// UpdateAnnotation rewrites the mutable fields of a stored annotation.
// The signature is identity and is never updated.
func (s *SQLiteStorage) UpdateAnnotation(ctx context.Context, namespace string, annotation *model.Annotation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAnnotation(annotation); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE annotations
		SET category_id = ?, color = ?, note = ?, updated_at = ?
		WHERE namespace = ? AND id = ?`,
		nullable(annotation.CategoryID), annotation.Color,
		nullable(annotation.Note), time.Now(), namespace, annotation.ID)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("annotation %s: %w", annotation.ID, common.ErrNotFound)
	}

	return nil
}

// RecolorAnnotationsByCategory updates the cached color of every
// annotation referencing a category in one statement, so a bulk recolor
// costs a single write regardless of how many annotations share the
// category. Returns the number of annotations updated.
func (s *SQLiteStorage) RecolorAnnotationsByCategory(ctx context.Context, namespace, categoryID, color string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return 0, err
	}
	if !model.IsHexColor(color) {
		return 0, fmt.Errorf("%w: color %q", ErrInvalidCategory, color)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE annotations
		SET color = ?, updated_at = ?
		WHERE namespace = ? AND category_id = ?`,
		color, time.Now(), namespace, categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to recolor annotations: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check recolor result: %w", err)
	}

	slog.Debug("recolored annotations", "category_id", categoryID, "count", affected)
	return int(affected), nil
}

// DeleteAnnotation removes an annotation record.
func (s *SQLiteStorage) DeleteAnnotation(ctx context.Context, namespace, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM annotations WHERE namespace = ? AND id = ?`, namespace, id)
	if err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// MigrateLegacyColors assigns default categories to annotations that
// predate the category system, resolving old flat color names through
// the fixed compatibility table. Runs as a single statement and is
// idempotent; meant to be called once per document load.
func (s *SQLiteStorage) MigrateLegacyColors(ctx context.Context, namespace string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(namespace, "namespace"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE annotations
		SET category_id = CASE color
			WHEN 'yellow' THEN 'cat-yellow'
			WHEN 'green'  THEN 'cat-green'
			WHEN 'blue'   THEN 'cat-blue'
			WHEN 'purple' THEN 'cat-purple'
			WHEN 'red'    THEN 'cat-red'
		END
		WHERE namespace = ?
		  AND (category_id IS NULL OR category_id = '')
		  AND color IN ('yellow', 'green', 'blue', 'purple', 'red')`,
		namespace)
	if err != nil {
		return 0, fmt.Errorf("failed to migrate legacy colors: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check migration result: %w", err)
	}

	if affected > 0 {
		slog.Info("migrated legacy annotation colors", "count", affected)
	}
	return int(affected), nil
}

func scanAnnotations(rows *sql.Rows) ([]model.Annotation, error) {
	var annotations []model.Annotation
	for rows.Next() {
		annotation, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		annotations = append(annotations, *annotation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotations: %w", err)
	}

	return annotations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (*model.Annotation, error) {
	var (
		a          model.Annotation
		annType    string
		namespace  string
		categoryID sql.NullString
		note       sql.NullString
		sig        string
	)

	err := row.Scan(&a.ID, &namespace, &a.PageNumber, &annType, &categoryID,
		&a.Color, &a.Text, &sig, &note, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Type = model.AnnotationType(annType)
	a.CategoryID = categoryID.String
	a.Note = note.String

	if err := json.Unmarshal([]byte(sig), &a.Signature); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}

	return &a, nil
}

// nullable converts an empty string to a SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
