// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance) and exposes a single blocking completion call. relayvox
// uses it as a translation backend: the source text goes in as a user message,
// the translated text comes back as the completion content.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the backend answered without any choices.
var ErrEmptyResponse = errors.New("llm: empty choices in response")

// Message is one turn of a conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the plain text of the turn.
	Content string

	// Name optionally identifies the speaker within a role.
	Name string
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero leaves the
	// provider default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// SystemPrompt is sent ahead of Messages as a system-role message.
	SystemPrompt string
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	// Content is the generated text.
	Content string

	// FinishReason reports why generation stopped ("stop", "length", ...).
	FinishReason string

	Usage Usage
}

// ModelCapabilities describes the static limits of a model.
type ModelCapabilities struct {
	ContextWindow     int
	MaxOutputTokens   int
	SupportsStreaming bool
	SupportsVision    bool
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends a request and blocks until the full response is ready.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns the static capabilities of the configured model.
	Capabilities() ModelCapabilities
}
