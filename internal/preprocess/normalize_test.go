package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t ", ""},
		{"rupee word", "Revenue Rs 1,234 cr", "Revenue Rs. 1234 cr"},
		{"rupee symbol", "Revenue ₹ 500 crores", "Revenue Rs. 500 cr"},
		{"rupee symbol no space", "₹500", "Rs. 500"},
		{"western grouping", "1,234,567", "1234567"},
		{"indian grouping keeps leading group", "1,23,456", "1,23456"},
		{"list commas survive", "1, 2, 3", "1, 2, 3"},
		{"four digit tail not stripped", "1,2345", "1,2345"},
		{"crore variants", "10 Crore and 20 CRORES", "10 cr and 20 cr"},
		{"lakh variants", "5 Lakhs, 6 lakh", "5 lakh, 6 lakh"},
		{"unit word left by a replacement", "10 croreore", "10 cr"},
		{"plural left by a replacement", "5 lakhss", "5 lakh"},
		{"mixed case unit remnant", "Rs 5 CroresOre", "Rs. 5 cr"},
		{"quarter fy spacing", "Q3 FY25 results", "Q3FY25 results"},
		{"quarter word", "Quarter 2 performance", "Q2 performance"},
		{"quarter word before FY", "quarter 3 FY25", "Q3FY25"},
		{"quarter ended untouched", "quarter ended June 2024", "quarter ended June 2024"},
		{"trims", "  Q1 FY24  ", "Q1FY24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"Revenue Rs 1,234,567 crores for Quarter 3 FY25",
		"₹ 12,34,567 lakhs in quarter 4 fy24",
		"Total income 1,23,456 and Q1 FY 25",
		"Rs Rs 1,000,000 Quarter 1 FY Quarter 2",
		"  ₹1,000 \n Q2   FY24 ",
		"Profit after tax, Crore, Lakh, 1,2,3,4,567",
		"5 lakhss",
		"10 croreore",
		"Rs 5 CroresOre",
		"cror crorecroreee lakhlakhss",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestStripThousandsSeparators_NoRescan(t *testing.T) {
	// The second comma is removed; the first is not, because at decision time
	// it was followed by "23,".
	assert.Equal(t, "12,34567", stripThousandsSeparators("12,34,567"))
	assert.Equal(t, "no commas", stripThousandsSeparators("no commas"))
	assert.Equal(t, ",123", stripThousandsSeparators(",123"))
}
