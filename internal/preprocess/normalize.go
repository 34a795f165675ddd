// Package preprocess holds the deterministic text handling that runs before
// and after a model call: normalization, term standardization, quarter and
// year validation, anchor search, context windows, fiscal calendar mapping
// and result correlation.
package preprocess

import (
	"regexp"
	"strings"
)

const canonicalRupee = "Rs. "

var (
	rupeeWordRe   = regexp.MustCompile(`\bRs `)
	rupeeSymbolRe = regexp.MustCompile(`₹[ \t]*`)
	croreRe       = regexp.MustCompile(`(?i)crores?`)
	lakhRe        = regexp.MustCompile(`(?i)lakhs?`)
	quarterFYRe   = regexp.MustCompile(`Q(\d)\s+FY`)
	quarterWordRe = regexp.MustCompile(`(?i:quarter)\s+(\d)(\s+FY)?`)
)

// Normalize canonicalizes currency prefixes, number formatting, unit words and
// quarter references. The steps run in a fixed order and the result is
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// Step 1: currency prefix.
	s := rupeeWordRe.ReplaceAllString(text, canonicalRupee)
	s = rupeeSymbolRe.ReplaceAllString(s, canonicalRupee)

	// Step 2: thousands separators.
	s = stripThousandsSeparators(s)

	// Step 3: unit words, repeated until stable since a replacement can
	// complete a new unit word ("croreore" -> "crore").
	s = normalizeUnits(s)

	// Step 4: "Q3 FY" -> "Q3FY".
	s = quarterFYRe.ReplaceAllString(s, "Q${1}FY")

	// Step 5: "Quarter 3" -> "Q3", collapsing a following " FY" the same way
	// step 4 does.
	s = quarterWordRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := quarterWordRe.FindStringSubmatch(m)
		out := "Q" + sub[1]
		if sub[2] != "" {
			out += "FY"
		}
		return out
	})

	return strings.TrimSpace(s)
}

func normalizeUnits(s string) string {
	for {
		next := croreRe.ReplaceAllString(s, "cr")
		next = lakhRe.ReplaceAllString(next, "lakh")
		if next == s {
			return s
		}
		s = next
	}
}

// stripThousandsSeparators drops a comma that sits between a digit and a run
// of exactly three digits. Decisions are made against the input only, so a
// removal never enables another one.
func stripThousandsSeparators(s string) string {
	if !strings.Contains(s, ",") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ',' && i > 0 && isDigit(s[i-1]) && digitRun(s, i+1) == 3 {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func digitRun(s string, from int) int {
	n := 0
	for i := from; i < len(s) && isDigit(s[i]); i++ {
		n++
	}
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
