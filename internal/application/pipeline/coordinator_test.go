package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinomic/ordersense/internal/intelligence/escalation"
	"github.com/clinomic/ordersense/internal/intelligence/order_llm"
	"github.com/clinomic/ordersense/internal/intelligence/pattern_extractor"
	"github.com/clinomic/ordersense/pkg/errors"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// stubGenerative lets tests script the generative tier.
type stubGenerative struct {
	available bool
	structure *clinical.Structure
	err       error
	calls     int
}

func (s *stubGenerative) Available() bool { return s.available }

func (s *stubGenerative) Extract(_ context.Context, _, _ string) (*clinical.Structure, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.structure, nil
}

func newCoordinator(t *testing.T, generative order_llm.GenerativeExtractor) *Coordinator {
	t.Helper()
	extractor, err := pattern_extractor.NewExtractor(nil, 0, nil)
	require.NoError(t, err)
	return NewCoordinator(extractor, escalation.NewPolicy(nil, nil), generative, nil, nil)
}

func medicationNames(env *Envelope) []string {
	var names []string
	meds, _ := env.StructuredOutput["medications"].([]map[string]interface{})
	for _, m := range meds {
		if name, ok := m["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestProcess_SufficientExtractionUsesRegexMethod(t *testing.T) {
	gen := &stubGenerative{available: true}
	c := newCoordinator(t, gen)

	env := c.Process(context.Background(), "Prescribed patient Mary Johnson amoxicillin 500mg three times daily for acute bacterial sinusitis.", nil, "req-1")

	assert.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, MethodRegexEnhanced, env.Method)
	assert.Empty(t, env.Error)
	assert.Contains(t, medicationNames(env), "amoxicillin")
	assert.Zero(t, gen.calls, "generative tier must not run when extraction is sufficient")
}

func TestProcess_EscalationReplacesOutputEntirely(t *testing.T) {
	generated := clinical.NewStructure()
	med, err := clinical.NewMedicationOrder(clinical.MedicationParams{
		Name: "tadalafil", Dosage: "5mg", Frequency: "daily",
	})
	require.NoError(t, err)
	generated.Medications = append(generated.Medications, med)

	gen := &stubGenerative{available: true, structure: generated}
	c := newCoordinator(t, gen)

	// Zero clinical content forces the zero-yield rule.
	env := c.Process(context.Background(), "The weather is nice today.", nil, "req-1")

	assert.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, MethodEscalatedToLLM, env.Method)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, []string{"tadalafil"}, medicationNames(env))
}

func TestProcess_UnavailableGenerativeFallsBack(t *testing.T) {
	c := newCoordinator(t, order_llm.Disabled())

	env := c.Process(context.Background(), "The weather is nice today.", nil, "req-1")

	assert.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, MethodFallback, env.Method)
	assert.Empty(t, medicationNames(env))
}

func TestProcess_GenerativeErrorYieldsFailedEnvelope(t *testing.T) {
	gen := &stubGenerative{
		available: true,
		err:       errors.New(errors.ErrCodeModelTimeout, "model call timed out"),
	}
	c := newCoordinator(t, gen)

	env := c.Process(context.Background(), "The weather is nice today.", nil, "req-1")

	assert.Equal(t, StatusFailed, env.Status)
	assert.Equal(t, MethodEscalatedToLLM, env.Method)
	assert.NotEmpty(t, env.Error)
	assert.Empty(t, medicationNames(env))
	// The envelope stays well-formed even on failure.
	assert.Contains(t, env.StructuredOutput, "medications")
	assert.Contains(t, env.StructuredOutput, "urgency_level")
}

func TestProcess_AssignsRequestIDWhenMissing(t *testing.T) {
	c := newCoordinator(t, order_llm.Disabled())

	env := c.Process(context.Background(), "Patient on insulin for diabetes.", nil, "")
	assert.NotEmpty(t, env.RequestID)

	other := c.Process(context.Background(), "Patient on insulin for diabetes.", nil, "")
	assert.NotEqual(t, env.RequestID, other.RequestID)
}

func TestProcess_RecordsProcessingTime(t *testing.T) {
	c := newCoordinator(t, order_llm.Disabled())

	env := c.Process(context.Background(), "Patient on insulin for diabetes.", nil, "req-1")
	assert.GreaterOrEqual(t, env.ProcessingTimeMs, int64(0))
}

func TestProcess_NilGenerativeTreatedAsDisabled(t *testing.T) {
	extractor, err := pattern_extractor.NewExtractor(nil, 0, nil)
	require.NoError(t, err)
	c := NewCoordinator(extractor, escalation.NewPolicy(nil, nil), nil, nil, nil)

	env := c.Process(context.Background(), "The weather is nice today.", nil, "req-1")
	assert.Equal(t, MethodFallback, env.Method)
	assert.Equal(t, StatusSuccess, env.Status)
}

func TestProcess_EntityHintsArePassedThrough(t *testing.T) {
	c := newCoordinator(t, order_llm.Disabled())

	env := c.Process(context.Background(), "Patient on insulin for diabetes.", []string{"insulin"}, "req-1")
	assert.Equal(t, StatusSuccess, env.Status)
}
