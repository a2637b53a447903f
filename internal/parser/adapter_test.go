package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egorv/bankflow/internal/model"
)

func TestAdapterParser_Parse(t *testing.T) {
	input := "01.03.2024;ACC1;100,50;;ACC2;Broker transfer\n" +
		"02.03.2024;ACC1;;500,00;;Dividend\n"

	stmt, err := NewAdapterParser().Parse(context.Background(), []byte(input))
	require.NoError(t, err)
	require.Len(t, stmt.Records, 2)

	assert.Equal(t, "KZT", stmt.Header.Currency)

	// A destination account reclassifies the row as a transfer.
	transfer := stmt.Records[0]
	assert.Equal(t, model.TypeTransfer, transfer.Type)
	assert.Equal(t, "ACC2", transfer.ToAccount)
	assert.Empty(t, transfer.Place)
	assert.Equal(t, "Broker transfer", transfer.Description)

	dividend := stmt.Records[1]
	assert.Equal(t, model.TypeIncome, dividend.Type)
	assert.Empty(t, dividend.Place)
}

func TestForSource(t *testing.T) {
	tests := []struct {
		source string
		kind   Kind
	}{
		{source: "bcc", kind: KindMarkupTable},
		{source: "generic", kind: KindGenericDelimited},
		{source: "commbank", kind: KindSpecializedDelimited},
		{source: "ff", kind: KindAdapter},
		{source: " BCC ", kind: KindMarkupTable},
	}

	for _, tt := range tests {
		p, err := ForSource(tt.source, Options{})
		require.NoError(t, err, "source %q", tt.source)
		assert.Equal(t, tt.kind, p.Kind())
	}

	_, err := ForSource("nosuchbank", Options{})
	require.Error(t, err)
}
