package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/quarterly-extractor/internal/extract"
	"github.com/dvloznov/quarterly-extractor/internal/llm"
	"github.com/dvloznov/quarterly-extractor/internal/logger"
	"github.com/dvloznov/quarterly-extractor/internal/metrics"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
	"github.com/google/uuid"
)

// ErrInvalidMode is returned for an unknown analysis mode.
var ErrInvalidMode = errors.New("invalid analysis mode")

// Mode selects what an extraction request produces.
type Mode string

const (
	// ModeBasic extracts the requested terms.
	ModeBasic Mode = "basic"
	// ModeCorrelation builds the calendar-correlated Revenue/PAT/EBITDA record.
	ModeCorrelation Mode = "correlation"
	// ModeComprehensive does both.
	ModeComprehensive Mode = "comprehensive"
)

// ParseMode resolves a mode name; empty means ModeBasic.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBasic, nil
	case ModeBasic, ModeCorrelation, ModeComprehensive:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Request is one quarter extraction.
type Request struct {
	Document extract.Document
	Quarter  string
	Year     string
	Terms    []string
	Mode     string
}

// EngineFailure is an extraction engine that produced no text.
type EngineFailure struct {
	Engine string `json:"engine" yaml:"engine"`
	Reason string `json:"reason" yaml:"reason"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the outcome of an extraction request.
type Result struct {
	RequestID   string                       `json:"request_id" yaml:"request_id"`
	Document    string                       `json:"document" yaml:"document"`
	Engine      string                       `json:"engine,omitempty" yaml:"engine,omitempty"`
	Mode        Mode                         `json:"mode" yaml:"mode"`
	Quarter     preprocess.Quarter           `json:"quarter" yaml:"quarter"`
	FiscalYear  string                       `json:"fiscal_year" yaml:"fiscal_year"`
	Terms       []string                     `json:"terms,omitempty" yaml:"terms,omitempty"`
	Anchors     []int                        `json:"anchors" yaml:"anchors"`
	Values      map[string]string            `json:"values,omitempty" yaml:"values,omitempty"`
	Correlation *preprocess.CorrelatedRecord `json:"correlation,omitempty" yaml:"-"`
	Failures    []EngineFailure              `json:"engine_failures,omitempty" yaml:"engine_failures,omitempty"`
	Warnings    []string                     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Options configures a Service.
type Options struct {
	// Engines are tried in order until one yields text.
	Engines []extract.Extractor

	Model     llm.Completer
	ModelName string
	MaxTokens int

	// Radius is the context window half-width; zero means the default.
	Radius int

	// Years resolves year input; the zero value uses the wall clock.
	Years preprocess.YearParser

	Scanner *Scanner
	Metrics *metrics.Metrics
}

// Service runs extraction, scan and query requests.
type Service struct {
	opts Options
}

// NewService creates a Service. A scanner sharing the model is created when
// none is given.
func NewService(opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.Scanner == nil {
		opts.Scanner = &Scanner{
			Model:     opts.Model,
			ModelName: opts.ModelName,
			Metrics:   opts.Metrics,
		}
	}
	return &Service{opts: opts}
}

// Extract validates the request and runs the pipeline for its mode.
// Validation errors wrap preprocess.ErrInvalidQuarter, preprocess.ErrInvalidYear
// or ErrInvalidMode; everything after validation degrades to warnings.
func (s *Service) Extract(ctx context.Context, req Request) (*Result, error) {
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: %w", err)
	}
	quarter, err := preprocess.ParseQuarter(req.Quarter)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: %w", err)
	}
	year, err := s.opts.Years.ParseYear(req.Year)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: %w", err)
	}

	requestID := uuid.NewString()
	log := logger.FromContext(ctx).With().
		Str("request_id", requestID).
		Str("document", req.Document.Name).
		Str("mode", string(mode)).
		Str("quarter", string(quarter)).
		Str("fiscal_year", year.Short()).
		Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{
		RequestID: requestID,
		Document:  req.Document,
		Quarter:   quarter,
		Year:      year,
		RawTerms:  req.Terms,
	}

	if err := s.pipelineFor(mode).Execute(ctx, state); err != nil {
		s.opts.Metrics.ObserveExtraction(string(mode), "error")
		return nil, fmt.Errorf("service.Extract: %w", err)
	}

	res := &Result{
		RequestID:  requestID,
		Document:   req.Document.Name,
		Engine:     state.Engine,
		Mode:       mode,
		Quarter:    quarter,
		FiscalYear: year.Short(),
		Terms:      preprocess.TermNames(state.Terms),
		Anchors:    state.Anchors,
		Values:     state.Values,
		Failures:   engineFailures(state.Failures),
		Warnings:   state.Warnings,
	}
	if res.Anchors == nil {
		res.Anchors = []int{}
	}
	if mode != ModeBasic {
		res.Correlation = state.Record
	}

	outcome := outcomeOf(state)
	s.opts.Metrics.ObserveExtraction(string(mode), outcome)
	log.Info().Str("outcome", outcome).Int("warnings", len(state.Warnings)).Msg("Extraction finished")
	return res, nil
}

func (s *Service) pipelineFor(mode Mode) *Pipeline {
	steps := []PipelineStep{
		&ExtractTextStep{Engines: s.opts.Engines, Metrics: s.opts.Metrics},
		&NormalizeStep{},
		&StandardizeTermsStep{},
		&LocateQuarterStep{Radius: s.opts.Radius, Metrics: s.opts.Metrics},
	}
	if mode == ModeBasic || mode == ModeComprehensive {
		steps = append(steps, s.valuesStep(false))
	}
	if mode == ModeCorrelation || mode == ModeComprehensive {
		steps = append(steps, s.valuesStep(true), &CorrelateStep{})
	}
	return NewPipeline(steps...)
}

func (s *Service) valuesStep(correlation bool) *ExtractValuesStep {
	return &ExtractValuesStep{
		Model:       s.opts.Model,
		ModelName:   s.opts.ModelName,
		MaxTokens:   s.opts.MaxTokens,
		Correlation: correlation,
	}
}

func outcomeOf(state *PipelineState) string {
	switch {
	case state.Text == "":
		return "no_text"
	case len(state.Anchors) == 0:
		return "no_anchor"
	case len(state.Values) == 0 && len(state.CorrelationValues) == 0:
		return "no_values"
	default:
		return "ok"
	}
}

func engineFailures(failures []*extract.Failure) []EngineFailure {
	out := make([]EngineFailure, 0, len(failures))
	for _, f := range failures {
		ef := EngineFailure{Engine: f.Engine, Reason: string(f.Reason)}
		if f.Err != nil {
			ef.Error = f.Err.Error()
		}
		out = append(out, ef)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TextResult is the normalized text of a document.
type TextResult struct {
	Document string          `json:"document"`
	Engine   string          `json:"engine,omitempty"`
	Text     string          `json:"text"`
	Failures []EngineFailure `json:"engine_failures,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Text extracts and normalizes the document text.
func (s *Service) Text(ctx context.Context, doc extract.Document) (*TextResult, error) {
	state := &PipelineState{Document: doc}
	p := NewPipeline(
		&ExtractTextStep{Engines: s.opts.Engines, Metrics: s.opts.Metrics},
		&NormalizeStep{},
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("service.Text: %w", err)
	}
	return &TextResult{
		Document: doc.Name,
		Engine:   state.Engine,
		Text:     state.Text,
		Failures: engineFailures(state.Failures),
		Warnings: state.Warnings,
	}, nil
}

// ScanResult is the outcome of a full-document scan.
type ScanResult struct {
	RequestID string          `json:"request_id" yaml:"request_id"`
	Document  string          `json:"document" yaml:"document"`
	Engine    string          `json:"engine,omitempty" yaml:"engine,omitempty"`
	Chunks    int             `json:"chunks" yaml:"chunks"`
	CacheHits int             `json:"cache_hits" yaml:"cache_hits"`
	Data      *DocumentData   `json:"data" yaml:"data"`
	Failures  []EngineFailure `json:"engine_failures,omitempty" yaml:"engine_failures,omitempty"`
	Warnings  []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Scan extracts every figure the model can find in the whole document.
func (s *Service) Scan(ctx context.Context, doc extract.Document) (*ScanResult, error) {
	requestID := uuid.NewString()
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With().
		Str("request_id", requestID).
		Str("document", doc.Name).
		Logger())

	text, err := s.Text(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("service.Scan: %w", err)
	}

	res := &ScanResult{
		RequestID: requestID,
		Document:  doc.Name,
		Engine:    text.Engine,
		Data:      NewDocumentData(),
		Failures:  text.Failures,
		Warnings:  text.Warnings,
	}
	if text.Text == "" {
		s.opts.Metrics.ObserveExtraction("scan", "no_text")
		return res, nil
	}

	out, err := s.opts.Scanner.Scan(ctx, text.Text)
	if err != nil {
		s.opts.Metrics.ObserveExtraction("scan", "error")
		return nil, fmt.Errorf("service.Scan: %w", err)
	}
	res.Chunks = out.Chunks
	res.CacheHits = out.CacheHits
	res.Data = out.Data
	res.Warnings = append(res.Warnings, out.Warnings...)

	outcome := "ok"
	if out.Data.Empty() {
		outcome = "no_values"
	}
	s.opts.Metrics.ObserveExtraction("scan", outcome)
	return res, nil
}

// QueryResult answers a free-text question about a document.
type QueryResult struct {
	RequestID string   `json:"request_id" yaml:"request_id"`
	Query     string   `json:"query" yaml:"query"`
	Metric    string   `json:"metric" yaml:"metric"`
	Period    string   `json:"period,omitempty" yaml:"period,omitempty"`
	Answer    string   `json:"answer" yaml:"answer"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Query scans the document and answers question from the scanned data.
// An empty question wraps preprocess.ErrEmptyQuery.
func (s *Service) Query(ctx context.Context, doc extract.Document, question string) (*QueryResult, error) {
	q, err := preprocess.ParseQuery(question)
	if err != nil {
		return nil, fmt.Errorf("service.Query: %w", err)
	}

	scanned, err := s.Scan(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("service.Query: %w", err)
	}

	return &QueryResult{
		RequestID: scanned.RequestID,
		Query:     strings.TrimSpace(question),
		Metric:    q.Metric,
		Period:    q.Period,
		Answer:    scanned.Data.Answer(q),
		Warnings:  scanned.Warnings,
	}, nil
}
