package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Neroli1108/intellidoc-reader/internal/common"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
	"github.com/Neroli1108/intellidoc-reader/internal/service"
)

// MockStorage is an in-memory Storage double. It counts write
// operations so tests can assert batching behavior, and can be forced
// to fail writes to exercise the availability-over-durability policy.
type MockStorage struct {
	mu          sync.Mutex
	annotations map[string]map[string]model.Annotation // namespace -> id -> record
	categories  map[string]model.Category
	failWrites  bool

	SaveCalls    int
	UpdateCalls  int
	RecolorCalls int
	DeleteCalls  int
}

// NewMockStorage creates a mock store seeded with the default categories.
func NewMockStorage() *MockStorage {
	m := &MockStorage{
		annotations: make(map[string]map[string]model.Annotation),
		categories:  make(map[string]model.Category),
	}
	for _, cat := range model.DefaultCategories() {
		m.categories[cat.ID] = cat
	}
	return m
}

// FailWrites toggles simulated persistence failures.
func (m *MockStorage) FailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = fail
}

func (m *MockStorage) writeErr() error {
	if m.failWrites {
		return fmt.Errorf("simulated write failure")
	}
	return nil
}

func (m *MockStorage) ns(namespace string) map[string]model.Annotation {
	if m.annotations[namespace] == nil {
		m.annotations[namespace] = make(map[string]model.Annotation)
	}
	return m.annotations[namespace]
}

// SaveAnnotation stores one annotation record.
func (m *MockStorage) SaveAnnotation(_ context.Context, namespace string, annotation *model.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if err := m.writeErr(); err != nil {
		return err
	}
	m.ns(namespace)[annotation.ID] = *annotation
	return nil
}

// SaveAnnotations stores a batch in one logical write.
func (m *MockStorage) SaveAnnotations(_ context.Context, namespace string, annotations []model.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if err := m.writeErr(); err != nil {
		return err
	}
	for _, a := range annotations {
		m.ns(namespace)[a.ID] = a
	}
	return nil
}

// GetAnnotations returns all records in a namespace.
func (m *MockStorage) GetAnnotations(_ context.Context, namespace string) ([]model.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Annotation, 0, len(m.annotations[namespace]))
	for _, a := range m.annotations[namespace] {
		out = append(out, a)
	}
	sortAnnotations(out)
	return out, nil
}

// GetAnnotationByID returns one record.
func (m *MockStorage) GetAnnotationByID(_ context.Context, namespace, id string) (*model.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.annotations[namespace][id]; ok {
		return &a, nil
	}
	return nil, fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
}

// GetAnnotationsByPage returns the records for one page.
func (m *MockStorage) GetAnnotationsByPage(_ context.Context, namespace string, pageNumber int) ([]model.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Annotation
	for _, a := range m.annotations[namespace] {
		if a.PageNumber == pageNumber {
			out = append(out, a)
		}
	}
	sortAnnotations(out)
	return out, nil
}

// UpdateAnnotation rewrites one record.
func (m *MockStorage) UpdateAnnotation(_ context.Context, namespace string, annotation *model.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if err := m.writeErr(); err != nil {
		return err
	}
	if _, ok := m.annotations[namespace][annotation.ID]; !ok {
		return fmt.Errorf("annotation %s: %w", annotation.ID, common.ErrNotFound)
	}
	m.ns(namespace)[annotation.ID] = *annotation
	return nil
}

// RecolorAnnotationsByCategory recolors all matching records in a
// single counted write.
func (m *MockStorage) RecolorAnnotationsByCategory(_ context.Context, namespace, categoryID, color string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecolorCalls++
	if err := m.writeErr(); err != nil {
		return 0, err
	}
	count := 0
	for id, a := range m.annotations[namespace] {
		if a.CategoryID == categoryID {
			a.Color = color
			m.annotations[namespace][id] = a
			count++
		}
	}
	return count, nil
}

// DeleteAnnotation removes one record.
func (m *MockStorage) DeleteAnnotation(_ context.Context, namespace, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if err := m.writeErr(); err != nil {
		return err
	}
	if _, ok := m.annotations[namespace][id]; !ok {
		return fmt.Errorf("annotation %s: %w", id, common.ErrNotFound)
	}
	delete(m.annotations[namespace], id)
	return nil
}

// MigrateLegacyColors applies the fixed legacy color table.
func (m *MockStorage) MigrateLegacyColors(_ context.Context, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, a := range m.annotations[namespace] {
		if a.CategoryID != "" {
			continue
		}
		if catID, ok := model.LegacyCategoryID(a.Color); ok {
			a.CategoryID = catID
			m.annotations[namespace][id] = a
			count++
		}
	}
	return count, nil
}

// GetCategories returns the category table in display order.
func (m *MockStorage) GetCategories(_ context.Context) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sortCategories(out)
	return out, nil
}

// GetCategoryByID returns one category.
func (m *MockStorage) GetCategoryByID(_ context.Context, id string) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.categories[id]; ok {
		return &c, nil
	}
	return nil, fmt.Errorf("category %s: %w", id, common.ErrNotFound)
}

// CreateCategory inserts a category.
func (m *MockStorage) CreateCategory(_ context.Context, category *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[category.ID]; ok {
		return fmt.Errorf("category %s: %w", category.ID, common.ErrDuplicateEntry)
	}
	m.categories[category.ID] = *category
	return nil
}

// UpdateCategory rewrites a category.
func (m *MockStorage) UpdateCategory(_ context.Context, category *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if err := m.writeErr(); err != nil {
		return err
	}
	if _, ok := m.categories[category.ID]; !ok {
		return fmt.Errorf("category %s: %w", category.ID, common.ErrNotFound)
	}
	m.categories[category.ID] = *category
	return nil
}

// ReorderCategories reassigns display order.
func (m *MockStorage) ReorderCategories(_ context.Context, orderedIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range orderedIDs {
		if c, ok := m.categories[id]; ok {
			c.Order = i
			m.categories[id] = c
		}
	}
	return nil
}

// DeleteCategory removes a category, refusing to delete the last one.
func (m *MockStorage) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.categories) <= 1 {
		return common.ErrLastCategory
	}
	if _, ok := m.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}
	delete(m.categories, id)
	return nil
}

// Migrate is a no-op for the in-memory store.
func (m *MockStorage) Migrate(_ context.Context) error { return nil }

// BeginTx is unsupported on the in-memory store.
func (m *MockStorage) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("transactions not supported by mock storage")
}

// Close is a no-op.
func (m *MockStorage) Close() error { return nil }
