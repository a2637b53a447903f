// Package parser converts raw statement exports into a uniform intermediate
// representation. Each source format gets its own parser behind a single
// Parse capability; format quirks stay inside the parser that owns them.
package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

// Kind identifies a parser implementation.
type Kind string

const (
	// KindMarkupTable parses HTML statements with nested table structures.
	KindMarkupTable Kind = "markup-table"
	// KindGenericDelimited parses the 6-column semicolon layout.
	KindGenericDelimited Kind = "generic-delimited"
	// KindSpecializedDelimited parses the 5-column brokerage layout.
	KindSpecializedDelimited Kind = "specialized-delimited"
	// KindAdapter wraps the generic parser with source-specific rewrites.
	KindAdapter Kind = "adapter"
)

// Header is the statement-level block shared by every row.
type Header struct {
	AccountNumber string
	OwnerName     string
	Currency      string
}

// Record is one raw transaction row. Amounts are signed: debits negative,
// credits positive. Row is the row number in the source file, shared with
// RowError so skips from parsing and reconciliation number consistently.
type Record struct {
	Row            int
	Date           time.Time
	ValueDate      time.Time
	Type           model.TransactionType
	AccountNumber  string
	ToAccount      string
	Place          string
	Description    string
	CurrencyPair   string
	Amount         decimal.Decimal
	// OriginalAmount is the amount in the account currency when the export
	// itself quotes both legs of a converted operation.
	OriginalAmount decimal.NullDecimal
	Balance        decimal.NullDecimal
	ConversionRate decimal.NullDecimal
}

// RowError is a soft per-row problem. The row is skipped; the import goes on.
type RowError struct {
	Message string
	Row     int
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// Statement is a parser's complete output: one header, the rows in source
// order, and the soft errors collected along the way.
type Statement struct {
	Header    Header
	Records   []Record
	RowErrors []RowError
}

// ErrorStrings renders the soft errors for the import's notes field.
func (s *Statement) ErrorStrings() []string {
	out := make([]string, len(s.RowErrors))
	for i, e := range s.RowErrors {
		out[i] = e.String()
	}
	return out
}

// Parser converts raw file bytes into a Statement. A returned error is
// fatal: a structural assumption was violated and the whole import aborts.
type Parser interface {
	Kind() Kind
	Parse(ctx context.Context, data []byte) (*Statement, error)
}

// Options tune behavior shared across parsers.
type Options struct {
	// ReportSkippedRows surfaces rows the markup parser would otherwise
	// drop silently (unexpected column counts) as soft errors.
	ReportSkippedRows bool
}

// Statement sources, as stored on the import record.
const (
	SourceBCC      = "bcc"
	SourceFreedom  = "ff"
	SourceCommBank = "commbank"
	SourceGeneric  = "generic"
)

// ForSource returns the parser for a statement source.
func ForSource(source string, opts Options) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceBCC:
		return NewMarkupParser(opts), nil
	case SourceGeneric:
		return NewDelimitedParser(), nil
	case SourceCommBank:
		return NewBrokerageParser(), nil
	case SourceFreedom:
		return NewAdapterParser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownSource, source)
	}
}

// SplitCurrencyPair splits a "CCC-DDD" pair into posted and original
// currency codes.
func SplitCurrencyPair(pair string) (posted, original string, ok bool) {
	parts := strings.Split(pair, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
