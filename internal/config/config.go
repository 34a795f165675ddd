// Package config loads runtime settings from a key-value file, a .env file
// and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredential is returned by Validate when a key required by the
// selected backend or engine is empty.
var ErrMissingCredential = errors.New("missing credential")

// DefaultPath is the config file read when none is given.
const DefaultPath = "config.json"

const (
	BackendGroq   = "groq"
	BackendGemini = "gemini"

	EngineLayout  = "pdf-layout"
	EnginePlain   = "pdf-plain"
	EngineOCR     = "ocr"
	EngineWhisper = "whisper"

	OCRGemini    = "gemini"
	OCRTesseract = "tesseract"
)

// Default model names per backend.
const (
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Config holds every setting the CLI and API need.
type Config struct {
	GroqAPIKey   string `mapstructure:"groq_api_key"`
	GroqBaseURL  string `mapstructure:"groq_base_url"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	WhispererAPIKey      string        `mapstructure:"llmwhisperer_api_key"`
	WhispererBaseURL     string        `mapstructure:"llmwhisperer_base_url"`
	WhispererWaitTimeout time.Duration `mapstructure:"whisper_wait_timeout"`

	Backend           string `mapstructure:"llm_backend"`
	Model             string `mapstructure:"llm_model"`
	MaxTokens         int    `mapstructure:"llm_max_tokens"`
	RequestsPerMinute int    `mapstructure:"llm_requests_per_minute"`

	Engines   []string `mapstructure:"extract_engines"`
	OCREngine string   `mapstructure:"ocr_engine"`

	CacheDir string        `mapstructure:"cache_dir"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	GCSBucket       string `mapstructure:"gcs_bucket"`
	CredentialsFile string `mapstructure:"google_application_credentials"`

	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// Load reads path (JSON or YAML, chosen by extension) if it exists, then .env,
// then the environment. A missing file is not an error; credentials are
// checked separately by Validate.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Secrets default to empty so AutomaticEnv values reach Unmarshal.
	for _, k := range []string{"groq_api_key", "gemini_api_key", "llmwhisperer_api_key", "llm_model", "cache_dir", "gcs_bucket", "google_application_credentials"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llmwhisperer_base_url", "https://llmwhisperer-api.us-central.unstract.com/api/v2")
	v.SetDefault("whisper_wait_timeout", 200*time.Second)
	v.SetDefault("llm_backend", BackendGroq)
	v.SetDefault("llm_max_tokens", 500)
	v.SetDefault("llm_requests_per_minute", 30)
	v.SetDefault("extract_engines", []string{EngineLayout, EnginePlain, EngineOCR})
	v.SetDefault("ocr_engine", OCRTesseract)
	v.SetDefault("cache_ttl", 24*time.Hour)
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.OCREngine = strings.ToLower(strings.TrimSpace(c.OCREngine))

	var engines []string
	for _, e := range c.Engines {
		for _, part := range strings.Split(e, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				engines = append(engines, p)
			}
		}
	}
	c.Engines = engines

	if c.Model == "" {
		switch c.Backend {
		case BackendGemini:
			c.Model = DefaultGeminiModel
		default:
			c.Model = DefaultGroqModel
		}
	}
}

// UsesEngine reports whether name is in the configured extraction chain.
func (c *Config) UsesEngine(name string) bool {
	for _, e := range c.Engines {
		if e == name {
			return true
		}
	}
	return false
}

// Validate checks the backend and engine names and that every credential
// they need is present.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("%w: GROQ_API_KEY is required for the %s backend", ErrMissingCredential, c.Backend)
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the %s backend", ErrMissingCredential, c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown LLM_BACKEND %q", c.Backend)
	}

	if len(c.Engines) == 0 {
		return fmt.Errorf("config: EXTRACT_ENGINES is empty")
	}
	for _, e := range c.Engines {
		switch e {
		case EngineLayout, EnginePlain:
		case EngineWhisper:
			if c.WhispererAPIKey == "" {
				return fmt.Errorf("%w: LLMWHISPERER_API_KEY is required for the %s engine", ErrMissingCredential, e)
			}
		case EngineOCR:
			switch c.OCREngine {
			case OCRTesseract:
			case OCRGemini:
				if c.GeminiAPIKey == "" {
					return fmt.Errorf("%w: GEMINI_API_KEY is required for gemini OCR", ErrMissingCredential)
				}
			default:
				return fmt.Errorf("config: unknown OCR_ENGINE %q", c.OCREngine)
			}
		default:
			return fmt.Errorf("config: unknown extraction engine %q", e)
		}
	}
	return nil
}
