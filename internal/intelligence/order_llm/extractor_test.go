package order_llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinomic/ordersense/internal/config"
	"github.com/clinomic/ordersense/internal/intelligence/common"
	"github.com/clinomic/ordersense/pkg/errors"
)

func enabledConfig() config.GenerativeConfig {
	return config.GenerativeConfig{
		Enabled:     true,
		BaseURL:     "http://localhost:8000/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0,
		MaxTokens:   2048,
		Timeout:     5 * time.Second,
	}
}

func backendReturning(content string) *common.MockBackend {
	return &common.MockBackend{
		ChatFunc: func(_ context.Context, _ *common.ChatRequest) (*common.ChatResponse, error) {
			return &common.ChatResponse{Content: content, FinishReason: "stop"}, nil
		},
	}
}

func TestNew_DisabledWithoutConfigOrBackend(t *testing.T) {
	assert.False(t, New(config.GenerativeConfig{}, common.NewMockBackend(), nil, nil).Available())
	assert.False(t, New(enabledConfig(), nil, nil, nil).Available())
	assert.True(t, New(enabledConfig(), common.NewMockBackend(), nil, nil).Available())
}

func TestDisabled_ExtractFailsWithUnavailable(t *testing.T) {
	_, err := Disabled().Extract(context.Background(), "text", "req-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelUnavailable))
}

func TestExtract_ParsesAndGroundsModelOutput(t *testing.T) {
	backend := backendReturning(`{
		"medications": [{"name": "insulin", "dosage": null, "frequency": null, "route": "unknown"}],
		"conditions": [{"name": "diabetes"}],
		"patients": []
	}`)
	e := New(enabledConfig(), backend, nil, nil)

	s, err := e.Extract(context.Background(), "Patient on insulin for diabetes.", "req-1")
	require.NoError(t, err)

	require.Len(t, s.Medications, 1)
	assert.Equal(t, "insulin", s.Medications[0].Name)
	assert.True(t, s.Medications[0].SafetyFlag())
	require.Len(t, s.Conditions, 1)
	assert.Equal(t, "diabetes", s.Conditions[0].Name)
}

func TestExtract_HallucinatedFieldsStripped(t *testing.T) {
	// The model invents a patient and a dosage; grounding removes both and
	// the reconstructed medication carries the safety flag.
	backend := backendReturning(`{
		"medications": [{"name": "insulin", "dosage": "10 units", "frequency": null}],
		"conditions": [],
		"patients": ["Unknown Patient"]
	}`)
	e := New(enabledConfig(), backend, nil, nil)

	s, err := e.Extract(context.Background(), "Patient on insulin for diabetes.", "req-1")
	require.NoError(t, err)

	assert.Empty(t, s.Patients)
	require.Len(t, s.Medications, 1)
	assert.Empty(t, s.Medications[0].Dosage)
	assert.True(t, s.Medications[0].SafetyFlag())
}

func TestExtract_StripsMarkdownFences(t *testing.T) {
	backend := backendReturning("```json\n{\"medications\": [], \"conditions\": [{\"name\": \"diabetes\"}]}\n```")
	e := New(enabledConfig(), backend, nil, nil)

	s, err := e.Extract(context.Background(), "Patient on insulin for diabetes.", "req-1")
	require.NoError(t, err)
	require.Len(t, s.Conditions, 1)
}

func TestExtract_InvalidJSONFailsLoudly(t *testing.T) {
	e := New(enabledConfig(), backendReturning("I could not process this order."), nil, nil)

	_, err := e.Extract(context.Background(), "text", "req-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelOutputInvalid))
}

func TestExtract_BackendErrorPropagates(t *testing.T) {
	backend := &common.MockBackend{
		ChatFunc: func(_ context.Context, _ *common.ChatRequest) (*common.ChatResponse, error) {
			return nil, errors.New(errors.ErrCodeModelTimeout, "deadline exceeded")
		},
	}
	e := New(enabledConfig(), backend, nil, nil)

	_, err := e.Extract(context.Background(), "text", "req-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelCallFailed))
}

func TestExtract_PromptCarriesRulesAndText(t *testing.T) {
	var captured *common.ChatRequest
	backend := &common.MockBackend{
		ChatFunc: func(_ context.Context, req *common.ChatRequest) (*common.ChatResponse, error) {
			captured = req
			return &common.ChatResponse{Content: "{}"}, nil
		},
	}
	e := New(enabledConfig(), backend, nil, nil)

	_, err := e.Extract(context.Background(), "Start metformin 1000mg.", "req-1")
	require.NoError(t, err)
	require.NotNil(t, captured)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, common.RoleSystem, captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "non-negotiable")
	assert.Contains(t, captured.Messages[0].Content, "Example 4")
	assert.Contains(t, captured.Messages[1].Content, "Start metformin 1000mg.")
	assert.Contains(t, captured.Messages[1].Content, "verbatim")
	assert.Zero(t, captured.Temperature)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
}
