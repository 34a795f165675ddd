package preprocess

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuarter(t *testing.T) {
	valid := map[string]Quarter{
		"Q1": Q1, "q2": Q2, " Q3 ": Q3, "q4": Q4,
		"1st": Q1, "First": Q1, "2ND": Q2, "second": Q2,
		"3rd": Q3, "THIRD": Q3, "4th": Q4, "Fourth": Q4,
		"1": Q1, "2": Q2, "3": Q3, "4": Q4,
		"First Quarter": Q1, "3rd quarter": Q3,
		"03": Q3, "+3": Q3, "004": Q4, "2 quarter": Q2,
	}
	for in, want := range valid {
		got, ok := ValidateQuarter(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"Q5", "0", "abc", "", "5", "Q", "quarter", "Q1 FY25", "-3", "05", "3.0"} {
		_, ok := ValidateQuarter(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParseQuarter_Error(t *testing.T) {
	_, err := ParseQuarter("Q9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuarter))
}

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.June, 15, 0, 0, 0, 0, time.UTC) }
}

func TestYearParser_Parse(t *testing.T) {
	p := YearParser{Now: fixedClock(2026)}

	tests := []struct {
		in     string
		want   FiscalYear
		wantOK bool
	}{
		{"2025", 2025, true},
		{"2000", 2000, true},
		{"2100", 2100, true},
		{"1999", 0, false},
		{"2101", 0, false},
		{"25", 2025, true},
		{"07", 2007, true},
		{"99", 2099, true},
		{"FY25", 2025, true},
		{"fy24", 2024, true},
		{"FY 23", 2023, true},
		{"FY2026", 2026, true},
		{"FY150", 0, false},
		{"FY", 0, false},
		{"FYxx", 0, false},
		{"current", 2026, true},
		{"PREVIOUS", 2025, true},
		{"last", 2025, true},
		{"+25", 0, false},
		{"-5", 0, false},
		{"next", 0, false},
		{"", 0, false},
		{"5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := p.Parse(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCenturyPolicy(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2024, CurrentCentury(24, now))
	assert.Equal(t, 2000, CurrentCentury(0, now))

	// The century follows the clock, so in the next century the same input
	// falls outside the accepted range.
	next := YearParser{Now: fixedClock(2101)}
	_, ok := next.Parse("24")
	assert.False(t, ok)

	// A custom policy can pin two digit years to a window.
	pinned := YearParser{
		Now: fixedClock(2026),
		Century: func(twoDigit int, _ time.Time) int {
			if twoDigit > 50 {
				return 1900 + twoDigit
			}
			return 2000 + twoDigit
		},
	}
	got, ok := pinned.Parse("30")
	require.True(t, ok)
	assert.Equal(t, FiscalYear(2030), got)
	_, ok = pinned.Parse("75")
	assert.False(t, ok)
}

func TestParseFiscalYear_WallClock(t *testing.T) {
	got, ok := ParseFiscalYear("FY2025")
	require.True(t, ok)
	assert.Equal(t, FiscalYear(2025), got)

	got, ok = ParseFiscalYear(" 2031 ")
	require.True(t, ok)
	assert.Equal(t, FiscalYear(2031), got)

	want := FiscalYear(time.Now().Year())
	got, ok = ParseFiscalYear("current")
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = ParseFiscalYear("1999")
	assert.False(t, ok)
}

func TestParseYear_Error(t *testing.T) {
	_, err := YearParser{Now: fixedClock(2026)}.ParseYear("nineteen")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYear)
}

func TestFiscalYear_Format(t *testing.T) {
	assert.Equal(t, "FY25", FiscalYear(2025).Short())
	assert.Equal(t, "FY05", FiscalYear(2005).Short())
	assert.Equal(t, "00", FiscalYear(2100).TwoDigits())
}
