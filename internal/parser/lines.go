package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var continuationStart = regexp.MustCompile(`^\s*$`)

// NormalizeContinuations rewrites a card export where long descriptions
// spill onto continuation rows. A row starting with a digit opens a new
// record; a row with an empty leading cell appends its description fragment
// to the previous record and carries a trailing account column. Rows that
// fit neither shape (page headers, footers) are dropped.
//
// The result is a flat CSV suitable for the delimited parsers.
func NormalizeContinuations(data []byte) ([]byte, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var out bytes.Buffer
	writer := csv.NewWriter(&out)

	var prev []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("normalize continuations: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		switch {
		case startsWithDigit(row[0]):
			if prev != nil {
				if err := writer.Write(prev); err != nil {
					return nil, fmt.Errorf("normalize continuations: %w", err)
				}
			}
			prev = row
		case continuationStart.MatchString(row[0]):
			if prev == nil || len(row) < 2 {
				continue
			}
			if len(prev) > 2 {
				prev[2] += " " + strings.TrimSpace(row[1])
			}
			prev = append(prev, stripEdges(strings.TrimSpace(row[len(row)-1])))
		default:
			// Page furniture between records.
		}
	}

	if prev != nil {
		if err := writer.Write(prev); err != nil {
			return nil, fmt.Errorf("normalize continuations: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("normalize continuations: %w", err)
	}
	return out.Bytes(), nil
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// stripEdges removes the wrapping characters around the trailing account
// column of a continuation row.
func stripEdges(s string) string {
	runes := []rune(s)
	if len(runes) < 2 {
		return s
	}
	return string(runes[1 : len(runes)-1])
}
