// Package csv parses upload files into raw rows. The expected wire format is
// a header line followed by one record per row:
//
//	type,account,department,year,month,amount
//
// Header matching is case-insensitive and column order is taken from the
// header, so exports with reordered columns still parse.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
)

// Parser is stateless and safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared parser instance.
func NewParser() *Parser {
	return parserInstance
}

var requiredColumns = []string{"type", "account", "year", "month", "amount"}

// Parse reads all rows from r. The department column is optional; every
// other column is required. Row numbers in errors count from 1 and include
// the header line, matching what a user sees in a spreadsheet.
func (p *Parser) Parse(r io.Reader) ([]domain.RawRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty upload: missing header line")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q in header", name)
		}
	}

	var rows []domain.RawRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		row, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(record []string, cols map[string]int) (domain.RawRow, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	year, err := strconv.Atoi(field("year"))
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("invalid year %q", field("year"))
	}
	month, err := strconv.Atoi(field("month"))
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("invalid month %q", field("month"))
	}
	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("invalid amount %q", field("amount"))
	}

	return domain.RawRow{
		Type:       field("type"),
		Account:    field("account"),
		Department: field("department"),
		Year:       year,
		Month:      month,
		Amount:     amount,
	}, nil
}
