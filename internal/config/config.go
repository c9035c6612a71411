// Package config defines all configuration structures for the OrderSense
// extraction service.  No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ExtractionConfig holds tunables for the deterministic pattern extractor.
type ExtractionConfig struct {
	// MaxTextLength caps the accepted order-text length in bytes; longer
	// inputs are rejected before any matching runs.
	MaxTextLength int `mapstructure:"max_text_length"`

	// LowerCaseMatching forces case-insensitive matching for every
	// lexicon lookup.  Disable only for controlled evaluation runs.
	LowerCaseMatching bool `mapstructure:"lower_case_matching"`
}

// GenerativeConfig holds parameters for the model-backed extractor.
type GenerativeConfig struct {
	// Enabled gates the generative path as a whole.  When false the
	// pipeline never escalates, regardless of policy decisions.
	Enabled bool `mapstructure:"enabled"`

	// BaseURL is the OpenAI-compatible chat-completions endpoint.
	BaseURL string `mapstructure:"base_url"`

	// APIKey authenticates against BaseURL.  Empty is permitted for
	// local inference servers.
	APIKey string `mapstructure:"api_key"`

	// Model is the model identifier sent with each request.
	Model string `mapstructure:"model"`

	// Temperature controls sampling; extraction wants determinism, so
	// the default is 0.
	Temperature float64 `mapstructure:"temperature"`

	// MaxTokens bounds the completion length.
	MaxTokens int `mapstructure:"max_tokens"`

	// Timeout bounds one round trip to the model backend.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LexiconConfig locates the optional lexicon overlay.
type LexiconConfig struct {
	// Path points at a YAML file whose tables replace the built-in
	// defaults wholesale, table by table.  Empty means built-ins only.
	Path string `mapstructure:"path"`

	// WatchChanges reloads the overlay when the file changes on disk.
	WatchChanges bool `mapstructure:"watch_changes"`
}

// MetricsConfig holds telemetry parameters.
type MetricsConfig struct {
	// Namespace prefixes every metric family name.
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the service.  Every
// component reads its settings from the relevant sub-struct.
type Config struct {
	Extraction ExtractionConfig  `mapstructure:"extraction"`
	Generative GenerativeConfig  `mapstructure:"generative"`
	Lexicon    LexiconConfig     `mapstructure:"lexicon"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Log        logging.LogConfig `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Extraction.MaxTextLength < 1 {
		return fmt.Errorf("config: extraction.max_text_length must be ≥ 1, got %d", c.Extraction.MaxTextLength)
	}

	if c.Generative.Enabled {
		if c.Generative.BaseURL == "" {
			return fmt.Errorf("config: generative.base_url is required when generative.enabled is true")
		}
		if c.Generative.Model == "" {
			return fmt.Errorf("config: generative.model is required when generative.enabled is true")
		}
	}
	if c.Generative.Temperature < 0 || c.Generative.Temperature > 2 {
		return fmt.Errorf("config: generative.temperature %v is out of range [0, 2]", c.Generative.Temperature)
	}
	if c.Generative.MaxTokens < 1 {
		return fmt.Errorf("config: generative.max_tokens must be ≥ 1, got %d", c.Generative.MaxTokens)
	}
	if c.Generative.Timeout <= 0 {
		return fmt.Errorf("config: generative.timeout must be positive, got %v", c.Generative.Timeout)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
