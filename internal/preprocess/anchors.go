package preprocess

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultRadius is the number of bytes kept on each side of an anchor.
const DefaultRadius = 2000

// anchorPatterns builds the case-insensitive patterns that mark a mention of
// the quarter in a report.
func anchorPatterns(q Quarter, year FiscalYear) []*regexp.Regexp {
	qs := regexp.QuoteMeta(string(q))
	yy := year.TwoDigits()
	full := fmt.Sprintf("%d", int(year))

	sources := []string{
		qs + `FY` + yy,
		qs + ` FY` + yy,
		strings.ToLower(qs) + `fy` + yy,
		`quarter ended (?:june|september|december|march)(?:\s+\d{1,2},?)?\s+` + full,
		qs + ` ` + full,
	}

	out := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		out = append(out, regexp.MustCompile(`(?i)`+src))
	}
	return out
}

// FindAnchors returns the byte offsets of every match of every quarter
// pattern, de-duplicated and sorted ascending. The first element is the
// earliest mention in the document.
func FindAnchors(text string, q Quarter, year FiscalYear) []int {
	if text == "" || q == "" {
		return nil
	}

	seen := make(map[int]struct{})
	var anchors []int
	for _, re := range anchorPatterns(q, year) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if _, dup := seen[loc[0]]; dup {
				continue
			}
			seen[loc[0]] = struct{}{}
			anchors = append(anchors, loc[0])
		}
	}
	sort.Ints(anchors)
	return anchors
}

// SelectWindow returns the text within radius bytes of the first anchor,
// clipped to the text and widened to rune boundaries. With no anchors it
// reports false and the caller should skip the model call.
func SelectWindow(text string, anchors []int, radius int) (string, bool) {
	if len(anchors) == 0 || text == "" {
		return "", false
	}
	a := anchors[0]
	if a < 0 || a > len(text) {
		return "", false
	}

	start := max(0, a-radius)
	end := min(len(text), a+radius)
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end], true
}
