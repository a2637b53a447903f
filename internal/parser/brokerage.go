package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egorv/bankflow/internal/model"
)

var (
	valueDatePattern = regexp.MustCompile(`Value Date: (\d{2}/\d{2}/\d{4}|\d{2}\.\d{2}\.\d{4}|\d{2}-\d{2}-\d{4})`)
	placePattern     = regexp.MustCompile(`^(.*?)(?:\s+Card|\s+Value Date:)`)
)

var valueDateLayouts = []string{"02/01/2006", "02.01.2006", "02-01-2006"}

// BrokerageParser reads the 5-column trading export:
// date;account;comment;amount;balance. The comment embeds a labeled value
// date and the merchant name.
type BrokerageParser struct{}

// NewBrokerageParser creates a specialized delimited statement parser.
func NewBrokerageParser() *BrokerageParser {
	return &BrokerageParser{}
}

// Kind implements Parser.
func (p *BrokerageParser) Kind() Kind {
	return KindSpecializedDelimited
}

// Parse implements Parser.
func (p *BrokerageParser) Parse(_ context.Context, data []byte) (*Statement, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	stmt := &Statement{
		Header: Header{Currency: "AUD"},
	}

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
		if len(row) < 5 {
			stmt.RowErrors = append(stmt.RowErrors, RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("malformed row, expected at least 5 columns, got %d", len(row)),
			})
			continue
		}

		date, err := time.Parse("02.Jan.06", CleanText(row[0]))
		if err != nil {
			stmt.RowErrors = append(stmt.RowErrors, RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("invalid date format %q", CleanText(row[0])),
			})
			continue
		}

		amount, hasAmount := ParseDollarAmount(row[3])
		if !hasAmount {
			stmt.RowErrors = append(stmt.RowErrors, RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("unparseable amount %q", CleanText(row[3])),
			})
			continue
		}

		comment := CleanText(row[2])
		place, valueDate := parseBrokerageComment(comment)
		if valueDate.IsZero() {
			valueDate = date
		}

		txType := model.TypeExpense
		if amount.IsPositive() {
			txType = model.TypeIncome
		}

		rec := Record{
			Row:           rowNum,
			Date:          date,
			ValueDate:     valueDate,
			Type:          txType,
			Amount:        amount,
			AccountNumber: CleanText(row[1]),
			Place:         place,
			Description:   comment,
		}
		if balance, ok := ParseDollarAmount(row[4]); ok {
			rec.Balance = decimal.NullDecimal{Decimal: balance, Valid: true}
		}

		stmt.Records = append(stmt.Records, rec)
	}

	return stmt, nil
}

// parseBrokerageComment extracts the merchant name and the labeled value
// date from a free-text comment.
func parseBrokerageComment(comment string) (string, time.Time) {
	var valueDate time.Time
	if m := valueDatePattern.FindStringSubmatch(comment); m != nil {
		for _, layout := range valueDateLayouts {
			if d, err := time.Parse(layout, m[1]); err == nil {
				valueDate = d
				break
			}
		}
	}

	var place string
	if m := placePattern.FindStringSubmatch(comment); m != nil {
		place = strings.TrimSpace(m[1])
	} else {
		place = strings.TrimSpace(strings.Split(comment, "Value Date:")[0])
	}
	return place, valueDate
}
