package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var (
	_ Extractor = (*PDFLayout)(nil)
	_ Extractor = (*PDFPlain)(nil)
	_ Extractor = (*WhisperClient)(nil)
	_ Extractor = (*GeminiOCR)(nil)
	_ Extractor = (*Tesseract)(nil)
)

func TestDocument_IsPDF(t *testing.T) {
	assert.True(t, Document{Data: []byte("%PDF-1.7\n...")}.IsPDF())
	assert.True(t, Document{Name: "Q3FY25.PDF"}.IsPDF())
	assert.True(t, Document{MIMEType: "application/pdf"}.IsPDF())
	assert.False(t, Document{Name: "notes.txt", Data: []byte("hello")}.IsPDF())
}

func TestResult_OK(t *testing.T) {
	assert.True(t, succeeded("x", "text", nil, 1).OK())

	r := succeeded("x", "  \n ", nil, 3)
	assert.False(t, r.OK())
	require.NotNil(t, r.Failure)
	assert.Equal(t, ReasonEmptyText, r.Failure.Reason)
	assert.Equal(t, 3, r.Pages)
	assert.True(t, errors.Is(r.Failure, ErrNoText))
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Engine: EngineLayout, Reason: ReasonEngineError, Err: errors.New("bad xref")}
	assert.Equal(t, "pdf-layout: engine_error: bad xref", f.Error())
	assert.Equal(t, "whisper: timeout", (&Failure{Engine: EngineWhisper, Reason: ReasonTimeout}).Error())
}

func TestPDFEngines_RejectNonPDF(t *testing.T) {
	doc := Document{Name: "report.docx", Data: []byte("PK\x03\x04")}
	for _, e := range []Extractor{NewPDFLayout(), NewPDFPlain()} {
		r := e.Extract(context.Background(), doc)
		require.NotNil(t, r.Failure, e.Name())
		assert.Equal(t, ReasonUnsupported, r.Failure.Reason, e.Name())
	}
}

func TestPDFEngines_MalformedPDF(t *testing.T) {
	doc := Document{Name: "broken.pdf", Data: []byte("%PDF-1.4\nthis is not really a pdf\n%%EOF")}
	for _, e := range []Extractor{NewPDFLayout(), NewPDFPlain()} {
		r := e.Extract(context.Background(), doc)
		assert.False(t, r.OK(), e.Name())
		require.NotNil(t, r.Failure, e.Name())
		assert.Equal(t, ReasonEngineError, r.Failure.Reason, e.Name())
		assert.Equal(t, e.Name(), r.Engine)
	}
}

func TestRowCells(t *testing.T) {
	words := []pdf.Text{
		{S: "Revenue", X: 10, W: 40, FontSize: 10},
		{S: "from", X: 52, W: 20, FontSize: 10},
		{S: "operations", X: 74, W: 50, FontSize: 10},
		{S: "1,234.5", X: 300, W: 30, FontSize: 10},
		{S: " ", X: 331, W: 2, FontSize: 10},
		{S: "1,100.0", X: 400, W: 30, FontSize: 10},
	}
	assert.Equal(t, []string{"Revenue from operations", "1,234.5", "1,100.0"}, rowCells(words))
	assert.Empty(t, rowCells(nil))
}

func TestIsTableRow(t *testing.T) {
	assert.True(t, isTableRow([]string{"Net Profit", "Rs. 512", "(45.2)"}))
	assert.True(t, isTableRow([]string{"EPS", "12.50"}))
	assert.True(t, isTableRow([]string{"Margin", "18.2%"}))
	assert.False(t, isTableRow([]string{"Notes to accounts"}))
	assert.False(t, isTableRow([]string{"Particulars", "Quarter ended"}))
}

func TestAppendTables(t *testing.T) {
	got := AppendTables("header", [][]string{{"Revenue", "100", "90"}, {"PAT", "10"}})
	assert.Equal(t, "header\nRevenue | 100 | 90\nPAT | 10", got)
	assert.Equal(t, "plain", AppendTables("plain", nil))
}

type fakeGenerator struct {
	text string
	err  error
	got  []*genai.Content
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.got = contents
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

func TestGeminiOCR(t *testing.T) {
	gen := &fakeGenerator{text: "Revenue | 1234 | 1100"}
	doc := Document{Name: "scan.pdf", Data: []byte("%PDF-1.5 scanned")}

	r := NewGeminiOCR(gen, "gemini-2.5-flash").Extract(context.Background(), doc)
	require.True(t, r.OK())
	assert.Equal(t, "Revenue | 1234 | 1100", r.Text)
	assert.Equal(t, EngineGeminiOCR, r.Engine)

	require.Len(t, gen.got, 1)
	require.Len(t, gen.got[0].Parts, 2)
	require.NotNil(t, gen.got[0].Parts[1].InlineData)
	assert.Equal(t, "application/pdf", gen.got[0].Parts[1].InlineData.MIMEType)
}

func TestGeminiOCR_Failures(t *testing.T) {
	doc := Document{Name: "scan.pdf", Data: []byte("%PDF-1.5")}

	r := NewGeminiOCR(nil, "m").Extract(context.Background(), doc)
	assert.Equal(t, ReasonUnavailable, r.Failure.Reason)

	r = NewGeminiOCR(&fakeGenerator{err: errors.New("quota")}, "m").Extract(context.Background(), doc)
	assert.Equal(t, ReasonEngineError, r.Failure.Reason)

	r = NewGeminiOCR(&fakeGenerator{text: ""}, "m").Extract(context.Background(), doc)
	assert.Equal(t, ReasonEmptyText, r.Failure.Reason)
}

func TestTesseract_Unavailable(t *testing.T) {
	e := &Tesseract{PdftoppmPath: "definitely-not-pdftoppm", TesseractPath: "definitely-not-tesseract", Lang: "eng", DPI: 300}
	assert.False(t, e.IsAvailable())

	r := e.Extract(context.Background(), Document{Name: "a.pdf", Data: []byte("%PDF-1.4")})
	require.NotNil(t, r.Failure)
	assert.Equal(t, ReasonUnavailable, r.Failure.Reason)
}
