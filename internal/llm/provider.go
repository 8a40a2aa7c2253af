// Package llm defines the text-generation provider contract used by
// the generation workers.
package llm

import "context"

// Roles for chat messages.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message represents a chat message in a generation request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider defines the interface for interacting with text-generation
// backends. Implementations handle protocol-specific details such as
// request formatting, authentication, and response parsing.
//
// The workers treat the provider as a black box: one attempt per task,
// any error or empty output triggers the local fallback policy.
type Provider interface {
	// Complete sends a chat completion request and returns the
	// generated text.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config holds common configuration for providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
