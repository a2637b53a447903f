package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egorv/bankflow/internal/model"
	"github.com/egorv/bankflow/internal/rules"
)

func TestMatch(t *testing.T) {
	mappings := []model.CategoryMapping{
		{Keyword: "Yandex Go", Mode: model.MatchExact, CategoryID: 1},
		{Keyword: "magnum", Mode: model.MatchContains, CategoryID: 2},
		{Keyword: "food", Mode: model.MatchContains, CategoryID: 3},
	}
	matcher := rules.NewMatcher(mappings)

	tests := []struct {
		name  string
		place string
		want  int64
		none  bool
	}{
		{name: "exact case-insensitive", place: "YANDEX GO", want: 1},
		{name: "exact trims whitespace", place: "  yandex go ", want: 1},
		{name: "contains substring", place: "MAGNUM ALMATY 42", want: 2},
		{name: "first contains rule wins", place: "magnum food court", want: 2},
		{name: "no match", place: "AIRBA FRESH", none: true},
		{name: "empty place", place: "", none: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matcher.Match(tt.place)
			if tt.none {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestMatchExactBeatsContains(t *testing.T) {
	// A broad contains rule listed first must not shadow an exact hit.
	matcher := rules.NewMatcher([]model.CategoryMapping{
		{Keyword: "go", Mode: model.MatchContains, CategoryID: 10},
		{Keyword: "yandex go", Mode: model.MatchExact, CategoryID: 20},
	})

	got := matcher.Match("Yandex Go")
	require.NotNil(t, got)
	assert.Equal(t, int64(20), *got)
}

func TestMatchEmptyRules(t *testing.T) {
	matcher := rules.NewMatcher(nil)
	assert.Nil(t, matcher.Match("anything"))
}
