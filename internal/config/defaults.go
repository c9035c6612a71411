// Package config provides configuration loading, defaults, and validation
// for the OrderSense extraction service.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultMaxTextLength = 32 * 1024

	DefaultGenerativeModel       = "gpt-4o-mini"
	DefaultGenerativeMaxTokens   = 2048
	DefaultGenerativeTimeout     = 30 * time.Second
	DefaultGenerativeTemperature = 0.0

	DefaultMetricsNamespace = "ordersense"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Extraction ────────────────────────────────────────────────────────────
	if cfg.Extraction.MaxTextLength == 0 {
		cfg.Extraction.MaxTextLength = DefaultMaxTextLength
	}

	// ── Generative ────────────────────────────────────────────────────────────
	if cfg.Generative.Model == "" {
		cfg.Generative.Model = DefaultGenerativeModel
	}
	if cfg.Generative.MaxTokens == 0 {
		cfg.Generative.MaxTokens = DefaultGenerativeMaxTokens
	}
	if cfg.Generative.Timeout == 0 {
		cfg.Generative.Timeout = DefaultGenerativeTimeout
	}
	// Temperature is a float; 0 is both the zero value and the intended
	// default, so no fill is needed.

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
