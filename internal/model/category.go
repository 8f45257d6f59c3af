package model

import (
	"regexp"
	"time"
)

// Category is a reusable, user-manageable label with a display color.
// Annotations reference categories by ID; recoloring a category
// propagates to every referencing annotation.
type Category struct {
	CreatedAt time.Time
	ID        string
	Name      string
	Color     string
	Order     int
	IsCustom  bool
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsHexColor reports whether s is a #RGB or #RRGGBB color value.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// DefaultCategories returns the system-defined categories seeded on
// first use. IDs are stable so legacy annotations can be migrated onto
// them deterministically; colors match the original highlight palette.
func DefaultCategories() []Category {
	return []Category{
		{ID: "cat-yellow", Name: "General", Color: "#FACC15", Order: 0},
		{ID: "cat-green", Name: "Definition", Color: "#22C55E", Order: 1},
		{ID: "cat-blue", Name: "Method", Color: "#3B82F6", Order: 2},
		{ID: "cat-purple", Name: "Question", Color: "#A855F7", Order: 3},
		{ID: "cat-red", Name: "Important", Color: "#EF4444", Order: 4},
	}
}

// legacyColorCategories maps the old flat color names to the default
// category that replaced them. Applied exactly once, at load time, to
// annotations that predate categories.
var legacyColorCategories = map[string]string{
	"yellow": "cat-yellow",
	"green":  "cat-green",
	"blue":   "cat-blue",
	"purple": "cat-purple",
	"red":    "cat-red",
}

// LegacyCategoryID resolves an old flat color name to its default
// category ID. The second return is false for unknown names, including
// hex values, which are kept as direct colors.
func LegacyCategoryID(colorName string) (string, bool) {
	id, ok := legacyColorCategories[colorName]
	return id, ok
}
