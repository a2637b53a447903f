package parser

import (
	"context"

	"github.com/egorv/bankflow/internal/model"
)

// AdapterParser wraps the generic delimited parser for a brokerage source
// whose exports reuse the generic layout: place strings carry no merchant,
// rows with a destination account are transfers, and the statement currency
// is fixed.
type AdapterParser struct {
	inner *DelimitedParser
}

// NewAdapterParser creates the wrapping parser.
func NewAdapterParser() *AdapterParser {
	return &AdapterParser{inner: NewDelimitedParser()}
}

// Kind implements Parser.
func (p *AdapterParser) Kind() Kind {
	return KindAdapter
}

// Parse implements Parser.
func (p *AdapterParser) Parse(ctx context.Context, data []byte) (*Statement, error) {
	stmt, err := p.inner.Parse(ctx, data)
	if err != nil {
		return nil, err
	}

	for i := range stmt.Records {
		stmt.Records[i].Place = ""
		if stmt.Records[i].ToAccount != "" {
			stmt.Records[i].Type = model.TypeTransfer
		}
	}
	stmt.Header.Currency = "KZT"

	return stmt, nil
}
