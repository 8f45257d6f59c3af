package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test annotations.
func createTestAnnotations(count int) []model.Annotation {
	annotations := make([]model.Annotation, count)
	baseTime := time.Now().Add(-24 * time.Hour)

	for i := 0; i < count; i++ {
		annotations[i] = model.Annotation{
			ID:         fmt.Sprintf("ann-%03d", i+1),
			PageNumber: (i % 3) + 1,
			Type:       model.AnnotationHighlight,
			CategoryID: "cat-yellow",
			Color:      "#FACC15",
			Text:       fmt.Sprintf("highlighted passage %d", i+1),
			Signature:  []string{"highlighted", "passage", fmt.Sprintf("%d", i+1)},
			CreatedAt:  baseTime.Add(time.Duration(i) * time.Minute),
			UpdatedAt:  baseTime.Add(time.Duration(i) * time.Minute),
		}
	}
	return annotations
}
