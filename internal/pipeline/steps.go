package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/dvloznov/quarterly-extractor/internal/extract"
	"github.com/dvloznov/quarterly-extractor/internal/llm"
	"github.com/dvloznov/quarterly-extractor/internal/logger"
	"github.com/dvloznov/quarterly-extractor/internal/metrics"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
)

// CorrelationTerms are always requested for the calendar-correlated record.
var CorrelationTerms = []preprocess.FinancialTerm{preprocess.TermRevenue, preprocess.TermPAT, preprocess.TermEBITDA}

// Step 1: ExtractTextStep tries each engine in order until one yields text.
// Running out of engines is not an error: the state is left with empty text
// and a warning.
type ExtractTextStep struct {
	Engines []extract.Extractor
	Metrics *metrics.Metrics
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	for _, engine := range s.Engines {
		res := engine.Extract(ctx, state.Document)
		if res.OK() {
			s.Metrics.ObserveEngine(engine.Name(), "ok")
			state.RawText = res.Text
			state.Engine = res.Engine
			log.Debug().
				Str("engine", res.Engine).
				Int("pages", res.Pages).
				Int("chars", len(res.Text)).
				Int("table_rows", len(res.Tables)).
				Msg("Text extracted")
			return nil
		}

		failure := res.Failure
		if failure == nil {
			failure = &extract.Failure{Engine: engine.Name(), Reason: extract.ReasonEmptyText, Err: extract.ErrNoText}
		}
		s.Metrics.ObserveEngine(engine.Name(), string(failure.Reason))
		state.Failures = append(state.Failures, failure)

		log.Warn().
			Str("engine", engine.Name()).
			Str("reason", string(failure.Reason)).
			Err(failure.Err).
			Msg("Extraction engine produced no text, trying next")

		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
	}

	state.warn("No text could be extracted from %s.", documentLabel(state.Document))
	return nil
}

// Step 2: NormalizeStep canonicalizes currency, number and quarter spellings.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Text = preprocess.Normalize(state.RawText)
	return nil
}

// Step 3: StandardizeTermsStep maps the requested terms to canonical names,
// falling back to the default set when none were given.
type StandardizeTermsStep struct{}

func (s *StandardizeTermsStep) Execute(ctx context.Context, state *PipelineState) error {
	raw := state.RawTerms
	if len(raw) == 0 {
		raw = preprocess.DefaultTerms
		state.warn("No terms given, using %s.", strings.Join(preprocess.DefaultTerms, ", "))
	}
	state.Terms = preprocess.StandardizeTerms(raw)
	return nil
}

// Step 4: LocateQuarterStep finds quarter mentions and cuts the context window
// around the earliest one.
type LocateQuarterStep struct {
	Radius  int
	Metrics *metrics.Metrics
}

func (s *LocateQuarterStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Text == "" {
		return nil
	}

	radius := s.Radius
	if radius <= 0 {
		radius = preprocess.DefaultRadius
	}

	state.Anchors = preprocess.FindAnchors(state.Text, state.Quarter, state.Year)
	s.Metrics.ObserveAnchors(len(state.Anchors))

	window, ok := preprocess.SelectWindow(state.Text, state.Anchors, radius)
	if !ok {
		state.warn("No exact match for %s%s found in document.", state.Quarter, state.Year.Short())
		return nil
	}
	state.Window = window

	log := logger.FromContext(ctx)
	log.Debug().
		Ints("anchors", state.Anchors).
		Int("window_chars", len(window)).
		Msg("Quarter located")
	return nil
}

// Step 5: ExtractValuesStep asks the model for term values inside the window.
// Model and parse failures become warnings with an empty mapping.
type ExtractValuesStep struct {
	Model     llm.Completer
	ModelName string
	MaxTokens int

	// Correlation asks for CorrelationTerms and stores the answer in
	// CorrelationValues instead of Values.
	Correlation bool
}

func (s *ExtractValuesStep) Execute(ctx context.Context, state *PipelineState) error {
	values := map[string]string{}
	defer func() {
		if s.Correlation {
			state.CorrelationValues = values
		} else {
			state.Values = values
		}
	}()

	if state.Window == "" {
		return nil
	}

	terms := state.Terms
	if s.Correlation {
		terms = CorrelationTerms
	}
	if len(terms) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)
	raw, err := s.Model.Complete(ctx, llm.Request{
		System:    SystemPrompt,
		User:      buildQuarterPrompt(state.Quarter, state.Year, preprocess.TermNames(terms), state.Window),
		Model:     s.ModelName,
		MaxTokens: s.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Warn().Err(err).Msg("Model call failed")
		state.warn("LLM extraction failed: %v", err)
		return nil
	}

	parsed, err := llm.ParseTermValues(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Model reply could not be parsed")
		state.warn("Model reply could not be parsed as JSON.")
		return nil
	}
	values = parsed
	return nil
}

// Step 6: CorrelateStep joins the correlation values with the fiscal calendar.
type CorrelateStep struct{}

func (s *CorrelateStep) Execute(ctx context.Context, state *PipelineState) error {
	rng, ok := preprocess.MapQuarterToRange(state.Quarter, state.Year)
	rec := preprocess.Assemble(state.Quarter, state.Year, rng, ok, state.CorrelationValues)
	if !rec.IsComplete() {
		state.warn("Date correlation validation failed.")
	}
	state.Record = &rec
	return nil
}

func documentLabel(doc extract.Document) string {
	if doc.Name != "" {
		return doc.Name
	}
	return "the document"
}
