package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/quarterly-extractor/internal/logger"
	"github.com/dvloznov/quarterly-extractor/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// GuardOptions configures Guarded.
type GuardOptions struct {
	// Backend labels logs and metrics ("groq", "gemini").
	Backend string

	// RequestsPerMinute paces calls; zero disables pacing.
	RequestsPerMinute int

	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration

	Metrics *metrics.Metrics
}

// Guarded paces requests to a backend and stops calling it after repeated
// failures.
type Guarded struct {
	next    Completer
	backend string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	metrics *metrics.Metrics
}

// NewGuarded wraps next.
func NewGuarded(next Completer, opts GuardOptions) *Guarded {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	g := &Guarded{
		next:    next,
		backend: opts.Backend,
		metrics: opts.Metrics,
	}
	if opts.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	threshold := opts.FailureThreshold
	g.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "llm-" + opts.Backend,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the backend.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

// Complete implements Completer.
func (g *Guarded) Complete(ctx context.Context, req Request) (string, error) {
	log := logger.FromContext(ctx)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate limit wait: %w", err)
		}
	}

	start := time.Now()
	out, err := g.breaker.Execute(func() (string, error) {
		return g.next.Complete(ctx, req)
	})
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
	case err != nil:
		outcome = "error"
	}
	g.metrics.ObserveModelCall(g.backend, outcome, elapsed)

	if err != nil {
		log.Warn().Err(err).Str("backend", g.backend).Str("outcome", outcome).Msg("Model call failed")
		return "", err
	}
	log.Debug().Str("backend", g.backend).Dur("duration", elapsed).Int("chars", len(out)).Msg("Model call completed")
	return out, nil
}
