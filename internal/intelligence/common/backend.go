// Package common holds the model-serving contract shared by the
// intelligence packages.  Extractors depend on ModelBackend, never on a
// concrete serving client, so inference infrastructure can change without
// touching extraction logic.
package common

import (
	"context"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a model inference request in chat form.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse carries the model's completion plus usage accounting.
type ChatResponse struct {
	Content          string `json:"content"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// ModelBackend is the interface for chat-completion inference.
type ModelBackend interface {
	// Chat performs one completion round trip.  Implementations must
	// honour ctx cancellation and their configured timeout.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Healthy reports whether the backend is reachable and serving.
	Healthy(ctx context.Context) error

	// Close releases any held connections.
	Close() error
}

// MockBackend is a test double with overridable behaviour.
type MockBackend struct {
	ChatFunc    func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HealthyFunc func(ctx context.Context) error
}

// NewMockBackend returns a MockBackend whose defaults succeed with an empty
// completion.
func NewMockBackend() *MockBackend { return &MockBackend{} }

func (m *MockBackend) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &ChatResponse{}, nil
}

func (m *MockBackend) Healthy(ctx context.Context) error {
	if m.HealthyFunc != nil {
		return m.HealthyFunc(ctx)
	}
	return nil
}

func (m *MockBackend) Close() error { return nil }
