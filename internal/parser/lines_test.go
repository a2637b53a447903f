package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeContinuations(t *testing.T) {
	input := strings.Join([]string{
		`Statement of card account`,
		`01.03.2024,02.03.2024,MAGNUM ALMATY,-5 400.00,KZT,,5 400.00,0.00,KZ11CARD`,
		`,continued merchant text,,,,,,,(KZT)`,
		`02.03.2024,02.03.2024,SALARY,500 000.00,KZT,500 000.00,,0.00,KZ11CARD`,
		`Page 1 of 2`,
	}, "\n")

	out, err := NormalizeContinuations([]byte(input))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)

	// The continuation fragment is folded into the description column and
	// the trailing column is carried with its wrapping stripped.
	assert.Contains(t, lines[0], "MAGNUM ALMATY continued merchant text")
	assert.True(t, strings.HasSuffix(lines[0], ",KZT"), "got %q", lines[0])
	assert.Contains(t, lines[1], "SALARY")
}

func TestNormalizeContinuations_Empty(t *testing.T) {
	out, err := NormalizeContinuations(nil)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(out)))
}
