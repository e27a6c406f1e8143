package csv

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `type,account,department,year,month,amount
Actual,4000,Sales,2025,3,1250.75
Budget,5000,,2025,4,-300
`
	rows, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Actual", rows[0].Type)
	assert.Equal(t, "4000", rows[0].Account)
	assert.Equal(t, "Sales", rows[0].Department)
	assert.Equal(t, 2025, rows[0].Year)
	assert.Equal(t, 3, rows[0].Month)
	assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("1250.75")))

	assert.Empty(t, rows[1].Department)
	assert.True(t, rows[1].Amount.Equal(decimal.RequireFromString("-300")))
}

func TestParseReorderedColumns(t *testing.T) {
	input := `Amount,Year,Month,Account,Type
99.50,2025,1,4000,Actual
`
	rows, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "4000", rows[0].Account)
	assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("99.50")))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty input", "", "missing header"},
		{"missing column", "type,account,year,month\n", `missing column "amount"`},
		{"bad year", "type,account,year,month,amount\nA,4000,twenty,1,5\n", "invalid year"},
		{"bad month", "type,account,year,month,amount\nA,4000,2025,first,5\n", "invalid month"},
		{"bad amount", "type,account,year,month,amount\nA,4000,2025,1,lots\n", "invalid amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseErrorsIncludeRowNumber(t *testing.T) {
	input := "type,account,year,month,amount\nA,4000,2025,1,10\nA,4000,2025,1,bad\n"
	_, err := NewParser().Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}

func TestParseHeaderOnly(t *testing.T) {
	rows, err := NewParser().Parse(strings.NewReader("type,account,year,month,amount\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
