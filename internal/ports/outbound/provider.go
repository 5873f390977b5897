package outbound

import (
	"context"
	"errors"
)

// ErrProviderNotConfigured is returned when no provider credential is set.
var ErrProviderNotConfigured = errors.New("text-generation provider not configured")

// PromptMessage is one role-tagged message sent to the provider.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	Messages    []PromptMessage
	Temperature float64
	MaxTokens   int
}

// CompletionProvider is an external text-generation service.
type CompletionProvider interface {
	// Complete returns the content of the first choice. It makes one
	// attempt and never retries.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Configured reports whether a credential is available.
	Configured() bool
}
