package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/egorv/bankflow/internal/model"
)

// DelimitedParser reads the fixed 6-column semicolon layout:
// date;account;debit;credit;destination-account;comment.
// Malformed rows become soft errors; one bad row never aborts the file.
type DelimitedParser struct{}

// NewDelimitedParser creates a generic delimited statement parser.
func NewDelimitedParser() *DelimitedParser {
	return &DelimitedParser{}
}

// Kind implements Parser.
func (p *DelimitedParser) Kind() Kind {
	return KindGenericDelimited
}

// Parse implements Parser.
func (p *DelimitedParser) Parse(_ context.Context, data []byte) (*Statement, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	stmt := &Statement{}

	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stmt.RowErrors = append(stmt.RowErrors, RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("unreadable row: %v", err),
			})
			continue
		}
		if len(row) < 6 {
			stmt.RowErrors = append(stmt.RowErrors, RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("malformed row, expected at least 6 columns, got %d", len(row)),
			})
			continue
		}

		debit, hasDebit := ParseAmount(row[2])
		credit, hasCredit := ParseAmount(row[3])
		comment := CleanText(row[5])

		rec := Record{
			Row:           rowNum,
			Place:         comment,
			Description:   comment,
			AccountNumber: CleanText(row[1]),
			ToAccount:     CleanText(row[4]),
		}

		switch {
		case hasDebit && debit.IsPositive():
			rec.Type = model.TypeExpense
			rec.Amount = debit.Neg()
		case hasCredit && credit.IsPositive():
			rec.Type = model.TypeIncome
			rec.Amount = credit
		default:
			// Neither a valid debit nor credit; nothing to post.
			continue
		}

		date, err := time.Parse("02.01.2006", CleanText(row[0]))
		if err != nil {
			stmt.RowErrors = append(stmt.RowErrors, RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("invalid date format for %q, expected DD.MM.YYYY", CleanText(row[0])),
			})
			continue
		}
		rec.Date = date
		rec.ValueDate = date

		stmt.Records = append(stmt.Records, rec)
	}

	// The layout has no header block; accounts come from the rows and the
	// currency from the resolved account.
	stmt.Header = Header{}
	return stmt, nil
}
