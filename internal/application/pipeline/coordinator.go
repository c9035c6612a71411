// Package pipeline is the single entry point of the extraction core.  The
// coordinator wires the deterministic extractor, the escalation policy, and
// the generative tier, owns timing and method bookkeeping, and formats the
// result envelope.  Nothing below it ever surfaces an error to the caller:
// every failure degrades to a well-typed envelope.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/prometheus"
	"github.com/clinomic/ordersense/internal/intelligence/escalation"
	"github.com/clinomic/ordersense/internal/intelligence/order_llm"
	"github.com/clinomic/ordersense/internal/intelligence/pattern_extractor"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// Extraction methods recorded in the envelope.
const (
	MethodRegexEnhanced  = "regex_enhanced"
	MethodEscalatedToLLM = "escalated_to_llm"
	MethodFallback       = "fallback"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Envelope is the processing result handed to logging, metrics, and the
// downstream record-assembly layer.
type Envelope struct {
	StructuredOutput map[string]interface{} `json:"structured_output"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
	Method           string                 `json:"method"`
	Status           string                 `json:"status"`
	Error            string                 `json:"error,omitempty"`
	RequestID        string                 `json:"request_id"`
}

// Coordinator orchestrates one extraction per call.  It is stateless across
// calls and safe for concurrent use.
type Coordinator struct {
	extractor  *pattern_extractor.Extractor
	policy     *escalation.Policy
	generative order_llm.GenerativeExtractor
	log        logging.Logger
	metrics    prometheus.PipelineMetrics
}

// NewCoordinator wires the pipeline.  extractor and policy are required; a
// nil generative extractor means the capability is permanently disabled, and
// nil logger/metrics fall back to nop implementations.
func NewCoordinator(
	extractor *pattern_extractor.Extractor,
	policy *escalation.Policy,
	generative order_llm.GenerativeExtractor,
	log logging.Logger,
	metrics prometheus.PipelineMetrics,
) *Coordinator {
	if generative == nil {
		generative = order_llm.Disabled()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopPipelineMetrics()
	}
	return &Coordinator{
		extractor:  extractor,
		policy:     policy,
		generative: generative,
		log:        log.Named("pipeline"),
		metrics:    metrics,
	}
}

// Process converts one text blob into the result envelope.  entities are
// pre-extracted hints passed through for log correlation only; the core does
// not depend on them.  Process never panics and never returns an error: any
// internal failure yields a failed envelope with an empty structure.
func (c *Coordinator) Process(ctx context.Context, text string, entities []string, requestID string) (env *Envelope) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := c.log.With(logging.String("request_id", requestID))
	start := time.Now()

	env = &Envelope{
		StructuredOutput: clinical.NewStructure().ToMap(),
		Method:           MethodRegexEnhanced,
		Status:           StatusSuccess,
		RequestID:        requestID,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("extraction pipeline panicked", logging.Any("panic", r))
			env.StructuredOutput = clinical.NewStructure().ToMap()
			env.Status = StatusFailed
			env.Error = fmt.Sprintf("internal error: %v", r)
		}
		env.ProcessingTimeMs = time.Since(start).Milliseconds()
		c.metrics.RecordExtraction(env.Method, env.Status, time.Since(start).Seconds())
	}()

	if len(entities) > 0 {
		log.Debug("pre-extracted entity hints received", logging.Int("count", len(entities)))
	}

	structure := c.extractor.Extract(text)

	decision := c.policy.ShouldEscalate(structure, text)
	if decision.Escalate {
		c.metrics.RecordEscalation(decision.Rule)

		if !c.generative.Available() {
			// Escalation wanted but the capability is absent; the
			// deterministic result stands, tagged as fallback.
			log.Info("escalation suppressed, generative capability unavailable",
				logging.String("rule", decision.Rule))
			env.Method = MethodFallback
		} else {
			genStart := time.Now()
			generated, err := c.generative.Extract(ctx, text, requestID)
			if err != nil {
				c.metrics.RecordGenerativeCall("error", time.Since(genStart).Seconds())
				log.Error("generative extraction failed",
					logging.String("rule", decision.Rule),
					logging.Err(err))
				env.StructuredOutput = clinical.NewStructure().ToMap()
				env.Method = MethodEscalatedToLLM
				env.Status = StatusFailed
				env.Error = err.Error()
				return env
			}
			c.metrics.RecordGenerativeCall("success", time.Since(genStart).Seconds())

			// The generated structure replaces the deterministic one
			// entirely; the two are never merged.
			structure = generated
			env.Method = MethodEscalatedToLLM
		}
	}

	for _, warning := range structure.Warnings() {
		log.Warn(warning)
	}
	c.metrics.RecordEntityCount(structure.TotalEntityCount())

	log.Info("extraction complete",
		logging.String("method", env.Method),
		logging.Int("entity_count", structure.TotalEntityCount()),
		logging.Bool("escalated", decision.Escalate),
		logging.Duration("elapsed", time.Since(start)),
	)

	env.StructuredOutput = structure.ToMap()
	return env
}
