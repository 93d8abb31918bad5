// Package model holds the shared domain types for pulse: articles, the
// closed set of categories, and generated insight sets.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Category partitions sources, articles, and insight generation.
type Category string

const (
	CategoryMortgage          Category = "mortgage"
	CategoryProductManagement Category = "product-management"
	CategoryCompetitorIntel   Category = "competitor-intel"

	// CategoryAll is a query-only value meaning "no category filter".
	CategoryAll Category = "all"
)

// ErrUnknownCategory is returned when a category string is not in the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// Categories returns the concrete categories, in display order.
// CategoryAll is not included.
func Categories() []Category {
	return []Category{
		CategoryMortgage,
		CategoryProductManagement,
		CategoryCompetitorIntel,
	}
}

// ParseCategory validates s against the closed set. CategoryAll is accepted.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryMortgage, CategoryProductManagement, CategoryCompetitorIntel, CategoryAll:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// IsAll reports whether c means "every category".
func (c Category) IsAll() bool {
	return c == CategoryAll || c == ""
}

// Label returns a human readable name.
func (c Category) Label() string {
	switch c {
	case CategoryMortgage:
		return "Mortgage"
	case CategoryProductManagement:
		return "Product Management"
	case CategoryCompetitorIntel:
		return "Competitor Intel"
	case CategoryAll:
		return "All"
	}
	return string(c)
}
