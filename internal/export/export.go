// Package export renders annotations into portable formats: markdown
// for reading, JSON for interchange with import.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// Record is the interchange form of one annotation. Field names are
// stable; import accepts exactly what export produces.
type Record struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	CategoryID string    `json:"category_id,omitempty"`
	Color      string    `json:"color,omitempty"`
	Text       string    `json:"text"`
	Note       string    `json:"note,omitempty"`
	Signature  []string  `json:"signature"`
	PageNumber int       `json:"page_number"`
}

// Document is the top-level JSON export: the annotations plus the
// category table they reference, so an import into a fresh database can
// recreate custom categories.
type Document struct {
	ExportedAt  time.Time        `json:"exported_at"`
	Annotations []Record         `json:"annotations"`
	Categories  []model.Category `json:"categories,omitempty"`
}

// ToMarkdown renders annotations grouped by page. Each annotation shows
// its category name (or raw color when detached) with the quoted text,
// followed by the note if one exists.
func ToMarkdown(annotations []model.Annotation, categories []model.Category) string {
	var b strings.Builder
	b.WriteString("# Document Annotations\n\n")

	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	byPage := make(map[int][]model.Annotation)
	for _, a := range annotations {
		byPage[a.PageNumber] = append(byPage[a.PageNumber], a)
	}

	pages := make([]int, 0, len(byPage))
	for page := range byPage {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	for _, page := range pages {
		fmt.Fprintf(&b, "## Page %d\n\n", page)

		for _, a := range byPage[page] {
			if a.Type.Anchorable() {
				label := a.Color
				if name, ok := names[a.CategoryID]; ok {
					label = name
				}
				if label == "" {
					label = "default"
				}
				text := strings.ReplaceAll(a.Text, "\n", " ")
				fmt.Fprintf(&b, "> **[%s]** %q\n", label, text)
			}

			if a.HasNote() {
				fmt.Fprintf(&b, "\n**Note:** %s\n", a.Note)
			}

			b.WriteString("\n---\n\n")
		}
	}

	return b.String()
}

// ToJSON renders the full interchange document, pretty-printed.
func ToJSON(annotations []model.Annotation, categories []model.Category) ([]byte, error) {
	doc := Document{
		ExportedAt:  time.Now().UTC(),
		Annotations: make([]Record, len(annotations)),
		Categories:  categories,
	}
	for i, a := range annotations {
		doc.Annotations[i] = toRecord(a)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotations: %w", err)
	}
	return data, nil
}

// FromJSON parses an interchange document and validates every record,
// so a bad file is rejected before anything touches the store.
func FromJSON(data []byte) ([]model.Annotation, []model.Category, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse annotation export: %w", err)
	}

	annotations := make([]model.Annotation, len(doc.Annotations))
	for i, r := range doc.Annotations {
		a := fromRecord(r)
		if err := a.Validate(); err != nil {
			return nil, nil, fmt.Errorf("annotation %q: %w", r.ID, err)
		}
		annotations[i] = a
	}

	return annotations, doc.Categories, nil
}

func toRecord(a model.Annotation) Record {
	return Record{
		ID:         a.ID,
		PageNumber: a.PageNumber,
		Type:       string(a.Type),
		CategoryID: a.CategoryID,
		Color:      a.Color,
		Text:       a.Text,
		Note:       a.Note,
		Signature:  a.Signature,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func fromRecord(r Record) model.Annotation {
	return model.Annotation{
		ID:         r.ID,
		PageNumber: r.PageNumber,
		Type:       model.AnnotationType(r.Type),
		CategoryID: r.CategoryID,
		Color:      r.Color,
		Text:       r.Text,
		Note:       r.Note,
		Signature:  r.Signature,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
