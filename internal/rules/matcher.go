// Package rules implements keyword-based category matching over transaction
// place strings.
package rules

import (
	"strings"

	"github.com/egorv/bankflow/internal/model"
)

// Matcher evaluates a fixed rule list against place strings. Rules are taken
// in the order given; exact rules are always consulted before contains rules
// so a specific merchant name beats a broad substring.
type Matcher struct {
	exact    []model.CategoryMapping
	contains []model.CategoryMapping
}

// NewMatcher builds a matcher from rules already sorted by the caller.
func NewMatcher(mappings []model.CategoryMapping) *Matcher {
	m := &Matcher{}
	for _, mapping := range mappings {
		switch mapping.Mode {
		case model.MatchExact:
			m.exact = append(m.exact, mapping)
		case model.MatchContains:
			m.contains = append(m.contains, mapping)
		}
	}
	return m
}

// Match returns the category for the first rule hit, or nil when no rule
// matches. Comparison is case-insensitive on the trimmed place string.
func (m *Matcher) Match(place string) *int64 {
	normalized := strings.ToLower(strings.TrimSpace(place))
	if normalized == "" {
		return nil
	}

	for _, rule := range m.exact {
		if normalized == strings.ToLower(strings.TrimSpace(rule.Keyword)) {
			id := rule.CategoryID
			return &id
		}
	}
	for _, rule := range m.contains {
		if strings.Contains(normalized, strings.ToLower(strings.TrimSpace(rule.Keyword))) {
			id := rule.CategoryID
			return &id
		}
	}
	return nil
}
