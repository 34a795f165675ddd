// Package extract turns uploaded report bytes into plain text. Each engine
// returns a Result that either carries text or says why it could not; the
// caller decides whether to try another engine.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Reason classifies an extraction failure.
type Reason string

const (
	// ReasonEmptyText means the engine ran but found no text, typical for
	// scanned documents without a text layer.
	ReasonEmptyText Reason = "empty_text"
	// ReasonEngineError means the engine failed on this document.
	ReasonEngineError Reason = "engine_error"
	// ReasonUnavailable means the engine cannot run here (missing binary,
	// missing credentials).
	ReasonUnavailable Reason = "unavailable"
	// ReasonTimeout means a remote engine did not finish within its bound.
	ReasonTimeout Reason = "timeout"
	// ReasonUnsupported means the document type is not handled.
	ReasonUnsupported Reason = "unsupported"
)

// ErrNoText is the cause attached to ReasonEmptyText failures.
var ErrNoText = errors.New("no extractable text")

// Document is an uploaded report.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsPDF reports whether the document looks like a PDF, by signature first and
// then by declared type or name.
func (d Document) IsPDF() bool {
	if len(d.Data) >= 5 && string(d.Data[:5]) == "%PDF-" {
		return true
	}
	return d.MIMEType == "application/pdf" || strings.HasSuffix(strings.ToLower(d.Name), ".pdf")
}

// Failure explains why an engine produced no text.
type Failure struct {
	Engine string
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Engine, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Engine, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one engine run.
type Result struct {
	Engine string
	Text   string

	// Tables holds table-like rows found alongside the text, one slice of
	// cells per row.
	Tables  [][]string
	Pages   int
	Failure *Failure
}

// OK reports whether the engine produced text.
func (r Result) OK() bool {
	return r.Failure == nil && strings.TrimSpace(r.Text) != ""
}

// Extractor is one text extraction engine.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document) Result
}

func failed(engine string, reason Reason, err error) Result {
	return Result{Engine: engine, Failure: &Failure{Engine: engine, Reason: reason, Err: err}}
}

// succeeded builds a Result from text, reporting ReasonEmptyText when the
// text is blank.
func succeeded(engine, text string, tables [][]string, pages int) Result {
	if strings.TrimSpace(text) == "" {
		r := failed(engine, ReasonEmptyText, ErrNoText)
		r.Pages = pages
		return r
	}
	return Result{Engine: engine, Text: text, Tables: tables, Pages: pages}
}

// contextReason maps a context error to a failure reason.
func contextReason(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonEngineError
}

// AppendTables renders table rows after the text, cells joined by " | ".
func AppendTables(text string, tables [][]string) string {
	if len(tables) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	for _, row := range tables {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}
