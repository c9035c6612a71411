package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/pkg/errors"
)

// openAIBackend talks to any OpenAI-compatible chat-completions endpoint
// (OpenAI itself, vLLM, Ollama, LM Studio).
type openAIBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logging.Logger
}

// NewOpenAIBackend constructs a ModelBackend against an OpenAI-compatible
// server.  baseURL is the API root (e.g. "https://api.openai.com/v1" or
// "http://localhost:8000/v1"); apiKey may be empty for local servers.
// A nil logger is replaced with a nop.
func NewOpenAIBackend(baseURL, apiKey string, timeout time.Duration, logger logging.Logger) (ModelBackend, error) {
	if baseURL == "" {
		return nil, errors.New(errors.ErrCodeModelNotConfigured, "model backend base URL is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &openAIBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("model_backend"),
	}, nil
}

// Wire types for the chat-completions endpoint.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (b *openAIBackend) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.NewInvalidInputError("chat request has no messages")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelCallFailed, "failed to build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, errors.ErrCodeModelTimeout, "chat request cancelled or timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeModelCallFailed, "chat request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelCallFailed, "failed to read chat response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeModelCallFailed,
			fmt.Sprintf("model backend returned HTTP %d: %s", resp.StatusCode, truncate(string(raw), 256)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelOutputInvalid, "failed to decode chat response")
	}
	if parsed.Error != nil {
		return nil, errors.New(errors.ErrCodeModelCallFailed, "model backend error: "+parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New(errors.ErrCodeModelOutputInvalid, "chat response has no choices")
	}

	b.logger.Debug("chat completion",
		logging.String("model", req.Model),
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("completion_tokens", parsed.Usage.CompletionTokens),
	)

	return &ChatResponse{
		Content:          parsed.Choices[0].Message.Content,
		FinishReason:     parsed.Choices[0].FinishReason,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func (b *openAIBackend) Healthy(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelUnavailable, "failed to build health request")
	}
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelUnavailable, "model backend unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeModelUnavailable,
			fmt.Sprintf("model backend health check returned HTTP %d", resp.StatusCode))
	}
	return nil
}

func (b *openAIBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
