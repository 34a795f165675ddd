package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardizeTerm(t *testing.T) {
	tests := map[string]FinancialTerm{
		"Revenue":            TermRevenue,
		"  total revenue ":   TermRevenue,
		"Net Revenue":        TermRevenue,
		"TURNOVER":           TermRevenue,
		"pat":                TermPAT,
		"Profit After Tax":   TermPAT,
		"net profit":         TermPAT,
		"Net Earnings":       TermPAT,
		"EBITDA":             TermEBITDA,
		"operating profit":   TermEBITDA,
		"Basic EPS":          TermEPS,
		"diluted eps":        TermEPS,
		"Earnings per share": TermEPS,
		"Dividend":           TermDividend,
		"dividend payout":    TermDividend,
		"Dividends Declared": TermDividend,
		" gross margin ":     "GROSS MARGIN",
		"Order Book":         "ORDER BOOK",
	}
	for in, want := range tests {
		assert.Equal(t, want, StandardizeTerm(in), "input %q", in)
	}
}

func TestStandardizeTerms_PreservesOrderAndLength(t *testing.T) {
	in := []string{"net profit", "Capex", "turnover"}
	got := StandardizeTerms(in)
	require.Len(t, got, 3)
	assert.Equal(t, []FinancialTerm{TermPAT, "CAPEX", TermRevenue}, got)
	assert.Empty(t, StandardizeTerms(nil))
}

func TestParseTermList(t *testing.T) {
	assert.Equal(t, []string{"Revenue", "PAT", "EBITDA"}, ParseTermList("Revenue, PAT ,, EBITDA "))
	assert.Nil(t, ParseTermList("  "))
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		in   string
		want Query
	}{
		{"Net Profit for Q3 FY25", Query{"Net Profit", "Q3 FY25"}},
		{"revenue for q1fy2024", Query{"revenue", "q1fy2024"}},
		{"EBITDA for FY24", Query{"EBITDA", "FY24"}},
		{"Total Income for 2023", Query{"Total Income", "2023"}},
		{"Return on Equity", Query{"Return on Equity", ""}},
		{"forecast revenue", Query{"forecast revenue", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuery(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuery("   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestPeriodKey(t *testing.T) {
	assert.Equal(t, "Q3FY25", PeriodKey("q3 FY25"))
	assert.Equal(t, PeriodKey("Q3FY25"), PeriodKey(" Q3  fy25 "))
}
