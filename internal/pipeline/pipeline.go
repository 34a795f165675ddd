// Package pipeline runs one extraction request as a sequence of steps:
// extract text, normalize it, standardize terms, anchor the quarter, ask the
// model, then correlate the answer with the fiscal calendar.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/quarterly-extractor/internal/extract"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
)

// PipelineStep represents a single step in the extraction pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RequestID string
	Document  extract.Document
	Quarter   preprocess.Quarter
	Year      preprocess.FiscalYear
	RawTerms  []string

	// Set by ExtractTextStep.
	RawText  string
	Engine   string
	Failures []*extract.Failure

	// Set by NormalizeStep.
	Text string

	// Set by StandardizeTermsStep.
	Terms []preprocess.FinancialTerm

	// Set by LocateQuarterStep.
	Anchors []int
	Window  string

	// Set by ExtractValuesStep.
	Values            map[string]string
	CorrelationValues map[string]string

	// Set by CorrelateStep.
	Record *preprocess.CorrelatedRecord

	Warnings []string
}

func (s *PipelineState) warn(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Len returns the number of steps.
func (p *Pipeline) Len() int {
	return len(p.steps)
}
