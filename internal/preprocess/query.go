package preprocess

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyQuery is returned for a blank free-text query.
var ErrEmptyQuery = errors.New("empty query")

var queryRe = regexp.MustCompile(`(?i)^(.*?)\s*\bfor\s*(Q\d\s*FY\d{2,4}|\bFY\d{2,4}\b|\b\d{4}\b)`)

// Query is a parsed "<metric> for <period>" question. Period is empty when
// the question names no period.
type Query struct {
	Metric string
	Period string
}

// ParseQuery splits a question such as "Net Profit for Q3 FY25".
func ParseQuery(input string) (Query, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Query{}, ErrEmptyQuery
	}
	if m := queryRe.FindStringSubmatch(s); m != nil {
		return Query{
			Metric: strings.TrimSpace(m[1]),
			Period: strings.TrimSpace(m[2]),
		}, nil
	}
	return Query{Metric: s}, nil
}

// PeriodKey folds a period label for comparison: "Q3 FY25" and "q3fy25"
// share a key.
func PeriodKey(period string) string {
	return strings.ToUpper(strings.Join(strings.Fields(period), ""))
}
