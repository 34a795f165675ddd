package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	plainpdf "github.com/dslipak/pdf"
	"github.com/ledongthuc/pdf"
)

const (
	EngineLayout = "pdf-layout"
	EnginePlain  = "pdf-plain"
)

var numericCell = regexp.MustCompile(`^[(\-]?(?:Rs\.?\s*|₹\s*)?\d[\d,]*(?:\.\d+)?\)?%?$`)

// PDFLayout reads the text layer row by row and keeps rows that look like
// table lines as separate cells.
type PDFLayout struct{}

// NewPDFLayout creates the layout-preserving PDF engine.
func NewPDFLayout() *PDFLayout {
	return &PDFLayout{}
}

// Name implements Extractor.
func (e *PDFLayout) Name() string { return EngineLayout }

// Extract implements Extractor.
func (e *PDFLayout) Extract(ctx context.Context, doc Document) (res Result) {
	if !doc.IsPDF() {
		return failed(EngineLayout, ReasonUnsupported, fmt.Errorf("not a PDF: %s", doc.Name))
	}

	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			res = failed(EngineLayout, ReasonEngineError, fmt.Errorf("panic during PDF parse: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return failed(EngineLayout, ReasonEngineError, fmt.Errorf("open PDF reader: %w", err))
	}

	numPages := reader.NumPage()
	var (
		text   strings.Builder
		tables [][]string
	)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return failed(EngineLayout, contextReason(err), err)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return failed(EngineLayout, ReasonEngineError, fmt.Errorf("page %d: %w", i, err))
		}

		for _, row := range rows {
			cells := rowCells(row.Content)
			if len(cells) == 0 {
				continue
			}
			text.WriteString(strings.Join(cells, " "))
			text.WriteString("\n")
			if isTableRow(cells) {
				tables = append(tables, cells)
			}
		}
	}

	return succeeded(EngineLayout, AppendTables(text.String(), tables), tables, numPages)
}

// rowCells merges the text runs of one row into cells, starting a new cell
// wherever the horizontal gap is wider than the font size.
func rowCells(words []pdf.Text) []string {
	var (
		cells   []string
		current strings.Builder
		lastEnd float64
	)
	for i, w := range words {
		s := strings.TrimSpace(w.S)
		if s == "" {
			continue
		}
		gap := w.X - lastEnd
		threshold := w.FontSize
		if threshold <= 0 {
			threshold = 5
		}
		if i > 0 && current.Len() > 0 && gap > threshold {
			cells = append(cells, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
		lastEnd = w.X + w.W
	}
	if current.Len() > 0 {
		cells = append(cells, current.String())
	}
	return cells
}

// isTableRow treats a row with a label and at least one numeric cell as a
// table line.
func isTableRow(cells []string) bool {
	if len(cells) < 2 {
		return false
	}
	for _, c := range cells[1:] {
		if numericCell.MatchString(strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

// PDFPlain reads the whole text layer as one stream. It copes with some files
// the layout engine rejects.
type PDFPlain struct {
	// MaxBytes caps the text read; zero means no cap.
	MaxBytes int64
}

// NewPDFPlain creates the plain-text PDF engine.
func NewPDFPlain() *PDFPlain {
	return &PDFPlain{MaxBytes: 32 << 20}
}

// Name implements Extractor.
func (e *PDFPlain) Name() string { return EnginePlain }

// Extract implements Extractor.
func (e *PDFPlain) Extract(ctx context.Context, doc Document) (res Result) {
	if !doc.IsPDF() {
		return failed(EnginePlain, ReasonUnsupported, fmt.Errorf("not a PDF: %s", doc.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			res = failed(EnginePlain, ReasonEngineError, fmt.Errorf("panic during PDF parse: %v", r))
		}
	}()

	reader, err := plainpdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return failed(EnginePlain, ReasonEngineError, fmt.Errorf("open PDF reader: %w", err))
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return failed(EnginePlain, ReasonEngineError, fmt.Errorf("extract plain text: %w", err))
	}

	var src io.Reader = plain
	if e.MaxBytes > 0 {
		src = io.LimitReader(plain, e.MaxBytes)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		return failed(EnginePlain, ReasonEngineError, fmt.Errorf("read plain text: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return failed(EnginePlain, contextReason(err), err)
	}

	return succeeded(EnginePlain, buf.String(), nil, reader.NumPage())
}
