// Package llm is the boundary to hosted language models. Callers build a
// Request, a Provider returns the raw completion text, and decorators add
// retries and audit logging around any provider.
package llm

import "context"

// Provider is the core abstraction for LLM interaction.
type Provider interface {
	// Generate sends a prompt and returns the model's text completion.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt is a single-turn request.
func UserPrompt(system, prompt string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: prompt}}}
}

type Response struct {
	Text  string
	Usage Usage
	Model string
	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
