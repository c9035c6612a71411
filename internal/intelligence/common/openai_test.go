package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinomic/ordersense/pkg/errors"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, ModelBackend) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend, err := NewOpenAIBackend(srv.URL, "test-key", 5*time.Second, nil)
	require.NoError(t, err)
	return srv, backend
}

func TestOpenAIBackend_Chat(t *testing.T) {
	_, backend := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Len(t, req.Messages, 2)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]string{"role": "assistant", "content": `{"medications": []}`},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 8},
		})
	})

	resp, err := backend.Chat(context.Background(), &ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "system"},
			{Role: RoleUser, Content: "user"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"medications": []}`, resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 8, resp.CompletionTokens)
}

func TestOpenAIBackend_ChatHTTPError(t *testing.T) {
	_, backend := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	_, err := backend.Chat(context.Background(), &ChatRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelCallFailed))
}

func TestOpenAIBackend_ChatNoChoices(t *testing.T) {
	_, backend := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	_, err := backend.Chat(context.Background(), &ChatRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelOutputInvalid))
}

func TestOpenAIBackend_ChatContextCancelled(t *testing.T) {
	_, backend := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := backend.Chat(ctx, &ChatRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelTimeout))
}

func TestOpenAIBackend_EmptyRequestRejected(t *testing.T) {
	_, backend := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := backend.Chat(context.Background(), &ChatRequest{Model: "m"})
	assert.Error(t, err)
}

func TestOpenAIBackend_Healthy(t *testing.T) {
	_, backend := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	assert.NoError(t, backend.Healthy(context.Background()))
}

func TestOpenAIBackend_UnhealthyOnNon200(t *testing.T) {
	_, backend := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := backend.Healthy(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelUnavailable))
}

func TestNewOpenAIBackend_RequiresBaseURL(t *testing.T) {
	_, err := NewOpenAIBackend("", "", 0, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotConfigured))
}
