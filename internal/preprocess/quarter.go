package preprocess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidQuarter is returned when a quarter input cannot be resolved.
	ErrInvalidQuarter = errors.New("invalid quarter")
	// ErrInvalidYear is returned when a fiscal year input cannot be resolved.
	ErrInvalidYear = errors.New("invalid fiscal year")
)

// Quarter is one of Q1..Q4 of an April-start fiscal year.
type Quarter string

const (
	Q1 Quarter = "Q1"
	Q2 Quarter = "Q2"
	Q3 Quarter = "Q3"
	Q4 Quarter = "Q4"
)

var quarterAliases = map[string]Quarter{
	"Q1": Q1, "1ST": Q1, "FIRST": Q1, "1": Q1,
	"Q2": Q2, "2ND": Q2, "SECOND": Q2, "2": Q2,
	"Q3": Q3, "3RD": Q3, "THIRD": Q3, "3": Q3,
	"Q4": Q4, "4TH": Q4, "FOURTH": Q4, "4": Q4,
}

// ValidateQuarter resolves free-form quarter input ("q3", "Third", "3",
// "3rd quarter") to a Quarter.
func ValidateQuarter(input string) (Quarter, bool) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return "", false
	}
	if q, ok := quarterOf(s); ok {
		return q, true
	}
	if rest, found := strings.CutSuffix(s, "QUARTER"); found {
		return quarterOf(strings.TrimSpace(rest))
	}
	return "", false
}

// quarterOf looks s up in the alias table, then accepts any integer form of
// 1..4 ("03", "+3").
func quarterOf(s string) (Quarter, bool) {
	if q, ok := quarterAliases[s]; ok {
		return q, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 4 {
		return "", false
	}
	return Quarter("Q" + strconv.Itoa(n)), true
}

// ParseQuarter is ValidateQuarter returning ErrInvalidQuarter on failure.
func ParseQuarter(input string) (Quarter, error) {
	q, ok := ValidateQuarter(input)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidQuarter, input)
	}
	return q, nil
}

// FiscalYear is the year in which a fiscal year ends (FY25 ends March 2025).
type FiscalYear int

const (
	MinFiscalYear FiscalYear = 2000
	MaxFiscalYear FiscalYear = 2100
)

// Short renders the two digit form used in reports ("FY25").
func (y FiscalYear) Short() string {
	return fmt.Sprintf("FY%02d", int(y)%100)
}

// TwoDigits returns the last two digits, zero padded.
func (y FiscalYear) TwoDigits() string {
	return fmt.Sprintf("%02d", int(y)%100)
}

func (y FiscalYear) valid() bool {
	return y >= MinFiscalYear && y <= MaxFiscalYear
}

// CenturyPolicy expands a two digit year (0-99) to a full year given the
// current time.
type CenturyPolicy func(twoDigit int, now time.Time) int

// CurrentCentury prefixes the century of now: "24" in 2026 is 2024, "99" is
// 2099.
func CurrentCentury(twoDigit int, now time.Time) int {
	return now.Year()/100*100 + twoDigit
}

// YearParser resolves fiscal year input. The zero value uses the wall clock
// and CurrentCentury.
type YearParser struct {
	Now     func() time.Time
	Century CenturyPolicy
}

func (p YearParser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p YearParser) expand(twoDigit int) int {
	if p.Century != nil {
		return p.Century(twoDigit, p.now())
	}
	return CurrentCentury(twoDigit, p.now())
}

// Parse accepts a full year ("2025"), a two digit year ("25"), an FY form
// ("FY25", "fy2025") or one of CURRENT, PREVIOUS, LAST. Every accepted form
// must land in [MinFiscalYear, MaxFiscalYear].
func (p YearParser) Parse(input string) (FiscalYear, bool) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return 0, false
	}

	var year int
	switch {
	case s == "CURRENT":
		year = p.now().Year()
	case s == "PREVIOUS" || s == "LAST":
		year = p.now().Year() - 1
	case strings.HasPrefix(s, "FY"):
		rest := strings.TrimSpace(strings.TrimPrefix(s, "FY"))
		if !allDigits(rest) {
			return 0, false
		}
		n, _ := strconv.Atoi(rest)
		if len(rest) == 4 {
			year = n
		} else {
			year = 2000 + n
		}
	default:
		if !allDigits(s) {
			return 0, false
		}
		n, _ := strconv.Atoi(s)
		switch {
		case FiscalYear(n).valid():
			year = n
		case len(s) == 2:
			year = p.expand(n)
		default:
			return 0, false
		}
	}

	fy := FiscalYear(year)
	if !fy.valid() {
		return 0, false
	}
	return fy, true
}

func allDigits(s string) bool {
	if s == "" || len(s) > 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// ParseFiscalYear resolves input against the wall clock.
func ParseFiscalYear(input string) (FiscalYear, bool) {
	return YearParser{}.Parse(input)
}

// ParseYear is YearParser.Parse returning ErrInvalidYear on failure.
func (p YearParser) ParseYear(input string) (FiscalYear, error) {
	y, ok := p.Parse(input)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, input)
	}
	return y, nil
}
