// Package app wires configuration into the services both entry points use.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/quarterly-extractor/internal/cache"
	"github.com/dvloznov/quarterly-extractor/internal/config"
	"github.com/dvloznov/quarterly-extractor/internal/extract"
	"github.com/dvloznov/quarterly-extractor/internal/llm"
	"github.com/dvloznov/quarterly-extractor/internal/logger"
	"github.com/dvloznov/quarterly-extractor/internal/metrics"
	"github.com/dvloznov/quarterly-extractor/internal/pipeline"
	"github.com/dvloznov/quarterly-extractor/internal/storage"
)

// App holds the wired services. Close releases what they opened.
type App struct {
	Config  *config.Config
	Service *pipeline.Service
	Loader  *storage.Loader
	GCS     *storage.GCS
	Metrics *metrics.Metrics

	closers []func() error
}

// New builds every service from cfg. cfg must already be validated.
// GCS is optional: when no client can be created, gs:// sources are
// rejected and a warning is logged.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}
	log = logger.Component(log, "app")

	var gemini *genai.Client
	if cfg.Backend == config.BackendGemini || (cfg.UsesEngine(config.EngineOCR) && cfg.OCREngine == config.OCRGemini) {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		gemini = client
	}

	var completer llm.Completer
	switch cfg.Backend {
	case config.BackendGemini:
		completer = llm.NewGeminiCompleter(gemini, cfg.Model)
	case config.BackendGroq:
		completer = llm.NewGroqCompleter(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("app.New: unknown backend %q", cfg.Backend)
	}
	guarded := llm.NewGuarded(completer, llm.GuardOptions{
		Backend:           cfg.Backend,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Metrics:           a.Metrics,
	})

	engines, err := Engines(cfg, gemini)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	memo, err := a.openCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	a.Loader = &storage.Loader{}
	gcs, err := storage.NewGCS(ctx, cfg.CredentialsFile)
	if err != nil {
		log.Warn().Err(err).Msg("GCS unavailable - gs:// documents and uploads are disabled")
	} else {
		a.GCS = gcs
		a.Loader.Remote = gcs
		a.closers = append(a.closers, gcs.Close)
	}

	a.Service = pipeline.NewService(pipeline.Options{
		Engines:   engines,
		Model:     guarded,
		ModelName: cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Metrics:   a.Metrics,
		Scanner: &pipeline.Scanner{
			Model:     guarded,
			ModelName: cfg.Model,
			Cache:     memo,
			Metrics:   a.Metrics,
		},
	})

	log.Info().
		Str("backend", cfg.Backend).
		Str("model", cfg.Model).
		Strs("engines", cfg.Engines).
		Bool("persistent_cache", cfg.CacheDir != "").
		Msg("Services initialized")
	return a, nil
}

// Engines builds the extraction chain in configured order. gemini is only
// needed for the Gemini OCR engine.
func Engines(cfg *config.Config, gemini *genai.Client) ([]extract.Extractor, error) {
	var engines []extract.Extractor
	for _, name := range cfg.Engines {
		switch name {
		case config.EngineLayout:
			engines = append(engines, extract.NewPDFLayout())
		case config.EnginePlain:
			engines = append(engines, extract.NewPDFPlain())
		case config.EngineWhisper:
			engines = append(engines, extract.NewWhisperClient(cfg.WhispererBaseURL, cfg.WhispererAPIKey, cfg.WhispererWaitTimeout))
		case config.EngineOCR:
			switch cfg.OCREngine {
			case config.OCRGemini:
				if gemini == nil {
					return nil, errors.New("gemini OCR needs a Gemini client")
				}
				engines = append(engines, extract.NewGeminiOCR(gemini.Models, config.DefaultGeminiModel))
			default:
				engines = append(engines, extract.NewTesseract())
			}
		default:
			return nil, fmt.Errorf("unknown extraction engine %q", name)
		}
	}
	return engines, nil
}

func (a *App) openCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.CacheDir == "" {
		return cache.NewMemory(), nil
	}
	db, err := cache.OpenBadger(cfg.CacheDir, cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

// Close releases every resource New opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
