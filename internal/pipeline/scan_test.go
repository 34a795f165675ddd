package pipeline

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"empty", "", 4, 1, nil},
		{"blank", "   ", 4, 1, nil},
		{"single chunk", "abc", 4, 1, []string{"abc"}},
		{"overlapping", "abcdefghij", 4, 1, []string{"abcd", "defg", "ghij"}},
		{"no overlap", "abcdefgh", 4, 0, []string{"abcd", "efgh"}},
		{"overlap too large is ignored", "abcdefgh", 4, 4, []string{"abcd", "efgh"}},
		{"runes are not split", "₹₹₹₹₹", 2, 0, []string{"₹₹", "₹₹", "₹"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkText(tt.text, tt.size, tt.overlap)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChunkText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunkText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("0123456789", 3000)
	chunks := ChunkText(text, DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if !strings.HasSuffix(text, chunks[len(chunks)-1]) {
		t.Error("last chunk should end the text")
	}
	if chunks[0][DefaultChunkSize-DefaultChunkOverlap:] != chunks[1][:DefaultChunkOverlap] {
		t.Error("neighbouring chunks should share the overlap")
	}
}

func TestDocumentData_Merge(t *testing.T) {
	d := NewDocumentData()
	d.merge(map[string]interface{}{
		"Quarterly Data": map[string]interface{}{
			" Q3 FY25 ": map[string]interface{}{"PAT": "Rs. 512 cr", "EPS": 12.5},
			"Q2 FY25":   "not an object",
		},
		"financial metrics": map[string]interface{}{"Revenue": "Rs. 1234 cr", "EBITDA": nil},
		"Commentary":        "ignored",
	})
	d.merge(map[string]interface{}{
		"Quarterly Data": map[string]interface{}{
			"Q3 FY25": map[string]interface{}{"PAT": "Rs. 999 cr", "Revenue": "Rs. 1234 cr"},
		},
		"Annual": map[string]interface{}{"FY24": map[string]interface{}{"Revenue": "Rs. 4000 cr"}},
	})

	want := &DocumentData{
		Quarterly: map[string]map[string]string{
			"Q3 FY25": {"PAT": "Rs. 512 cr", "EPS": "12.5", "Revenue": "Rs. 1234 cr"},
		},
		Annual:  map[string]map[string]string{"FY24": {"Revenue": "Rs. 4000 cr"}},
		Metrics: map[string]string{"Revenue": "Rs. 1234 cr"},
	}
	if !reflect.DeepEqual(d, want) {
		t.Errorf("merge() = %+v, want %+v", d, want)
	}
}

func TestDocumentData_AnswerEmpty(t *testing.T) {
	var d *DocumentData
	if got := d.Answer(preprocess.Query{Metric: "Revenue"}); got != MsgNoData {
		t.Errorf("nil Answer() = %q", got)
	}
	if got := NewDocumentData().Answer(preprocess.Query{Metric: "Revenue", Period: "FY24"}); got != MsgNoData {
		t.Errorf("empty Answer() = %q", got)
	}
}

func TestBuildQuarterPrompt(t *testing.T) {
	p := buildQuarterPrompt(preprocess.Q4, 2024, []string{"REVENUE", "EPS"}, "CONTEXT")
	for _, want := range []string{
		"explicitly labeled for Q4FY24",
		"- Quarter: Q4",
		"- Year: FY24",
		"- Terms: REVENUE, EPS",
		"YTD figures",
		"\"Not found\"",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.HasSuffix(p, "Text context:\nCONTEXT") {
		t.Error("prompt should end with the context window")
	}
}
