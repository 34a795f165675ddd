package preprocess

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Metadata keys every correlated record carries.
const (
	KeyQuarter         = "Quarter"
	KeyFiscalYear      = "Fiscal Year"
	KeyStartDate       = "Start Date"
	KeyEndDate         = "End Date"
	KeyCalendarEndDate = "Calendar End Date"

	notAvailable = "N/A"
)

var requiredKeys = []string{KeyQuarter, KeyFiscalYear, KeyStartDate, KeyEndDate, KeyCalendarEndDate}

// Field is one key/value pair of a record.
type Field struct {
	Key   string
	Value string
}

// CorrelatedRecord joins quarter metadata with model-extracted values. Field
// order is stable: metadata first, then model keys alphabetically.
type CorrelatedRecord struct {
	Fields []Field
}

// Assemble builds a record. Model keys that collide with metadata keys are
// dropped so the metadata stays authoritative.
func Assemble(q Quarter, year FiscalYear, rng CalendarRange, hasRange bool, values map[string]string) CorrelatedRecord {
	start, end, calEnd := notAvailable, notAvailable, notAvailable
	if hasRange {
		start = formatDate(rng.Start)
		end = formatDate(rng.End)
		calEnd = formatDate(rng.CalendarEnd)
	}

	rec := CorrelatedRecord{Fields: []Field{
		{KeyQuarter, string(q)},
		{KeyFiscalYear, year.Short()},
		{KeyStartDate, start},
		{KeyEndDate, end},
		{KeyCalendarEndDate, calEnd},
	}}

	keys := make([]string, 0, len(values))
	for k := range values {
		if !isMetadataKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.Fields = append(rec.Fields, Field{k, values[k]})
	}
	return rec
}

func isMetadataKey(k string) bool {
	for _, rk := range requiredKeys {
		if rk == k {
			return true
		}
	}
	return false
}

// Get returns the value stored under key.
func (r CorrelatedRecord) Get(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// IsComplete reports whether all five metadata keys are present.
func (r CorrelatedRecord) IsComplete() bool {
	for _, k := range requiredKeys {
		if _, ok := r.Get(k); !ok {
			return false
		}
	}
	return true
}

// Values returns only the model-extracted fields.
func (r CorrelatedRecord) Values() []Field {
	var out []Field
	for _, f := range r.Fields {
		if !isMetadataKey(f.Key) {
			out = append(out, f)
		}
	}
	return out
}

// MarshalJSON writes the record as an object, keeping field order.
func (r CorrelatedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
