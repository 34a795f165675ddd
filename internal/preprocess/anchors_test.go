package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// place writes each snippet at its offset in a space-filled text of size n.
func place(n int, snippets map[int]string) string {
	buf := []byte(strings.Repeat(" ", n))
	for off, s := range snippets {
		copy(buf[off:], s)
	}
	return string(buf)
}

func TestFindAnchors_EarliestFirst(t *testing.T) {
	text := place(10000, map[int]string{
		150:  "Q3FY25",
		9000: "Q3 2024",
	})
	anchors := FindAnchors(text, Q3, 2025)
	require.NotEmpty(t, anchors)
	assert.Equal(t, 150, anchors[0])
}

func TestFindAnchors_SortedAcrossPatterns(t *testing.T) {
	// The "Q3 2025" form appears before the "Q3FY25" form; pattern order must
	// not decide which anchor comes first.
	text := place(5000, map[int]string{
		100:  "Q3 2025",
		3000: "Q3FY25",
		4000: "quarter ended December 31, 2025",
	})
	anchors := FindAnchors(text, Q3, 2025)
	assert.Equal(t, []int{100, 3000, 4000}, anchors)
}

func TestFindAnchors_CaseInsensitiveAndDeduplicated(t *testing.T) {
	text := "results for q2fy24 and Q2 FY24 and QUARTER ENDED SEPTEMBER 2024"
	anchors := FindAnchors(text, Q2, 2024)
	assert.Equal(t, []int{12, 23, 35}, anchors)
}

func TestFindAnchors_None(t *testing.T) {
	assert.Empty(t, FindAnchors("nothing to see here", Q1, 2025))
	assert.Empty(t, FindAnchors("", Q1, 2025))
	assert.Empty(t, FindAnchors("Q1FY25", "", 2025))
}

func TestSelectWindow(t *testing.T) {
	text := strings.Repeat("a", 10000)

	w, ok := SelectWindow(text, []int{50}, DefaultRadius)
	require.True(t, ok)
	assert.Equal(t, text[0:2050], w)

	w, ok = SelectWindow(text, []int{9500}, DefaultRadius)
	require.True(t, ok)
	assert.Equal(t, text[7500:10000], w)

	w, ok = SelectWindow(text, []int{5000, 50}, DefaultRadius)
	require.True(t, ok)
	assert.Len(t, w, 4000)
}

func TestSelectWindow_NoAnchors(t *testing.T) {
	w, ok := SelectWindow("some text", nil, DefaultRadius)
	assert.False(t, ok)
	assert.Empty(t, w)

	_, ok = SelectWindow("", []int{0}, DefaultRadius)
	assert.False(t, ok)
}

func TestSelectWindow_RuneBoundaries(t *testing.T) {
	text := "€€€€€"
	w, ok := SelectWindow(text, []int{6}, 2)
	require.True(t, ok)
	assert.Equal(t, "€€", w)
}
