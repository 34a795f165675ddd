package preprocess

import "time"

// DateLayout renders dates the way reports print them ("January 1, 2025").
const DateLayout = "January 2, 2006"

// CalendarRange is the calendar span covered by a fiscal quarter.
type CalendarRange struct {
	Start       time.Time
	End         time.Time
	CalendarEnd time.Time
}

type quarterSpan struct {
	startMonth, startDay int
	endMonth, endDay     int
	yearOffset           int
}

// Fiscal years start in April; Q1-Q3 fall in the preceding calendar year.
var fiscalQuarters = map[Quarter]quarterSpan{
	Q1: {4, 1, 6, 30, -1},
	Q2: {7, 1, 9, 30, -1},
	Q3: {10, 1, 12, 31, -1},
	Q4: {1, 1, 3, 31, 0},
}

// MapQuarterToRange maps a fiscal quarter to its calendar dates.
func MapQuarterToRange(q Quarter, year FiscalYear) (CalendarRange, bool) {
	span, ok := fiscalQuarters[q]
	if !ok {
		return CalendarRange{}, false
	}
	y := int(year) + span.yearOffset
	end := time.Date(y, time.Month(span.endMonth), span.endDay, 0, 0, 0, 0, time.UTC)
	return CalendarRange{
		Start:       time.Date(y, time.Month(span.startMonth), span.startDay, 0, 0, 0, 0, time.UTC),
		End:         end,
		CalendarEnd: end,
	}, true
}

func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}
