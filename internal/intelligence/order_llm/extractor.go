// Package order_llm is the generative tier of the extraction pipeline: a
// model-backed structured extractor invoked only when the escalation policy
// judges the deterministic pass insufficient.  Raw model output is never
// trusted; it passes through the grounding validator before anything is
// returned.
package order_llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/clinomic/ordersense/internal/config"
	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/internal/intelligence/common"
	"github.com/clinomic/ordersense/internal/intelligence/grounding"
	"github.com/clinomic/ordersense/pkg/errors"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// GenerativeExtractor is the capability interface for the generative tier.
// Absence of a configured model is a valid, expected state: the coordinator
// checks Available before invoking Extract and simply never escalates when
// the capability is missing.
type GenerativeExtractor interface {
	// Extract produces a grounded clinical structure from text.  It fails
	// loudly on model errors; the pipeline coordinator owns the catch.
	Extract(ctx context.Context, text, requestID string) (*clinical.Structure, error)

	// Available reports whether the generative capability is usable.
	Available() bool
}

// ---------------------------------------------------------------------------
// Disabled variant
// ---------------------------------------------------------------------------

type disabledExtractor struct{}

// Disabled returns the permanently-unavailable variant, used when no model
// is configured.
func Disabled() GenerativeExtractor { return disabledExtractor{} }

func (disabledExtractor) Available() bool { return false }

func (disabledExtractor) Extract(context.Context, string, string) (*clinical.Structure, error) {
	return nil, errors.Unavailable("generative extraction is not configured")
}

// ---------------------------------------------------------------------------
// Model-backed variant
// ---------------------------------------------------------------------------

type modelExtractor struct {
	cfg       config.GenerativeConfig
	backend   common.ModelBackend
	validator *grounding.Validator
	log       logging.Logger
}

// New builds a GenerativeExtractor from configuration.  When the generative
// tier is disabled or the backend is nil, the Disabled variant is returned;
// construction itself never fails for an absent capability.
func New(cfg config.GenerativeConfig, backend common.ModelBackend, validator *grounding.Validator, log logging.Logger) GenerativeExtractor {
	if !cfg.Enabled || backend == nil {
		return Disabled()
	}
	if validator == nil {
		validator = grounding.NewValidator(nil, nil)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &modelExtractor{
		cfg:       cfg,
		backend:   backend,
		validator: validator,
		log:       log.Named("order_llm"),
	}
}

func (e *modelExtractor) Available() bool { return true }

func (e *modelExtractor) Extract(ctx context.Context, text, requestID string) (*clinical.Structure, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.backend.Chat(ctx, &common.ChatRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []common.ChatMessage{
			{Role: common.RoleSystem, Content: systemPrompt},
			{Role: common.RoleUser, Content: buildUserPrompt(text)},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelCallFailed, "generative extraction call failed")
	}

	parsed, err := parseModelOutput(resp.Content)
	if err != nil {
		return nil, err
	}

	validated := e.validator.Validate(parsed, text, requestID)
	structure := clinical.StructureFromMap(validated)

	e.log.Info("generative extraction complete",
		logging.String("request_id", requestID),
		logging.Int("entity_count", structure.TotalEntityCount()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return structure, nil
}

// parseModelOutput decodes the completion into the structure map.  Models
// wrap JSON in markdown fences often enough that stripping them here is
// cheaper than re-prompting.
func parseModelOutput(content string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(trimmed), "```"))

	if trimmed == "" {
		return nil, errors.New(errors.ErrCodeModelOutputInvalid, "model returned empty output")
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelOutputInvalid, "model output is not a JSON object")
	}
	return parsed, nil
}
