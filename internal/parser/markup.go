package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
)

// Statement labels as they appear in the HTML export. The wire format is
// localized; these are format constants, not UI strings.
const (
	markupHeaderAccountKey  = "Выписка по счету"
	markupHeaderOwnerKey    = "Ф.И.О. клиента"
	markupHeaderCurrencyKey = "Валюта депозита"
)

// markupDescPattern splits the free-text description of a card operation
// into the true transaction timestamp, the merchant, and an optional
// currency pair plus conversion rate. Rows whose description does not match
// are account-to-account movements.
var markupDescPattern = regexp.MustCompile(
	`^Retail\. Номер устройства в ПЦ, ` +
		`(?P<date>\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}:\d{2}),\s*` +
		`(?P<place>.*?)` +
		`,\s*Карта:\s*\S+` +
		`(?:\s+Валюты:(?P<pair>[A-Z]{3}-[A-Z]{3})\|\s*IPS:\s*(?P<rate>\d+\.\d+))?`)

// MarkupParser reads statements exported as nested HTML tables: a key/value
// header table followed by a 5-column transactions table.
type MarkupParser struct {
	opts Options
}

// NewMarkupParser creates a markup-table statement parser.
func NewMarkupParser(opts Options) *MarkupParser {
	return &MarkupParser{opts: opts}
}

// Kind implements Parser.
func (p *MarkupParser) Kind() Kind {
	return KindMarkupTable
}

// Parse implements Parser. A missing header or transactions table is fatal;
// individual malformed rows are skipped.
func (p *MarkupParser) Parse(_ context.Context, data []byte) (*Statement, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedStatement, err)
	}

	stmt := &Statement{}

	if err := p.parseHeader(doc, stmt); err != nil {
		return nil, err
	}
	if err := p.parseTransactions(doc, stmt); err != nil {
		return nil, err
	}

	return stmt, nil
}

func (p *MarkupParser) parseHeader(doc *html.Node, stmt *Statement) error {
	for _, table := range findTables(doc) {
		fields := map[string]string{}
		for _, row := range tableRows(table) {
			cells := rowCells(row)
			if len(cells) != 2 {
				continue
			}
			key := strings.TrimSuffix(CleanText(cells[0]), ":")
			fields[key] = CleanText(cells[1])
		}

		account, ok := fields[markupHeaderAccountKey]
		if !ok {
			continue
		}
		// The account value carries a leading marker character.
		if runes := []rune(account); len(runes) > 1 {
			account = string(runes[1:])
		}
		stmt.Header = Header{
			AccountNumber: account,
			OwnerName:     fields[markupHeaderOwnerKey],
			Currency:      fields[markupHeaderCurrencyKey],
		}
		return nil
	}
	return fmt.Errorf("%w: header table not found", common.ErrMalformedStatement)
}

func (p *MarkupParser) parseTransactions(doc *html.Node, stmt *Statement) error {
	// The transactions table is the second table with the statement's grid
	// attributes; the first holds the opening balance.
	var gridTables []*html.Node
	for _, table := range findTables(doc) {
		if attrValue(table, "cellpadding") == "2" && attrValue(table, "cellspacing") == "1" {
			gridTables = append(gridTables, table)
		}
	}
	if len(gridTables) < 2 {
		return fmt.Errorf("%w: transactions table not found", common.ErrMalformedStatement)
	}

	rows := tableRows(gridTables[1])
	if len(rows) <= 2 {
		return nil
	}
	// Skip the column header row and the trailing totals row.
	for i, row := range rows[1 : len(rows)-1] {
		rowNum := i + 1
		cells := rowCells(row)
		if len(cells) != 5 {
			if p.opts.ReportSkippedRows {
				stmt.RowErrors = append(stmt.RowErrors, RowError{
					Row:     rowNum,
					Message: fmt.Sprintf("unexpected column count %d, row skipped", len(cells)),
				})
			}
			continue
		}

		rec, ok := p.parseRow(cells)
		if !ok {
			continue
		}
		rec.Row = rowNum
		stmt.Records = append(stmt.Records, rec)
	}
	return nil
}

func (p *MarkupParser) parseRow(cells []string) (Record, bool) {
	debit, hasDebit := ParseAmount(cells[2])
	credit, hasCredit := ParseAmount(cells[3])

	var amount decimal.Decimal
	var txType model.TransactionType
	switch {
	case hasDebit:
		amount = debit.Neg()
		txType = model.TypeExpense
	case hasCredit:
		amount = credit
		txType = model.TypeIncome
	default:
		return Record{}, false
	}

	date, err := time.Parse("02.01.2006", CleanText(cells[1]))
	if err != nil {
		return Record{}, false
	}

	rec := Record{
		Date:        date,
		ValueDate:   date,
		Type:        txType,
		Amount:      amount,
		Description: CleanText(cells[4]),
	}

	m := markupDescPattern.FindStringSubmatch(rec.Description)
	if m == nil {
		// Descriptions outside the card-operation pattern are internal
		// transfers; they carry no destination and get skipped downstream.
		rec.Type = model.TypeTransfer
		return rec, true
	}

	groups := map[string]string{}
	for i, name := range markupDescPattern.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}

	if ts, err := time.Parse("02.01.2006 15:04:05", groups["date"]); err == nil {
		rec.ValueDate = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	rec.Place = CleanText(groups["place"])
	rec.CurrencyPair = groups["pair"]
	if rateStr := groups["rate"]; rateStr != "" {
		if rate, ok := ParseAmount(rateStr); ok {
			rec.ConversionRate = decimal.NullDecimal{Decimal: rate, Valid: true}
		}
	}
	return rec, true
}

// findTables returns every table node in document order.
func findTables(n *html.Node) []*html.Node {
	var tables []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "table" {
			tables = append(tables, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return tables
}

// tableRows returns the tr nodes belonging to this table, not to tables
// nested inside it.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				rows = append(rows, c)
			case "table":
				// nested table, rows belong to it
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

// rowCells returns the text content of each td/th cell in a row.
func rowCells(row *html.Node) []string {
	var cells []string
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, nodeText(c))
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
