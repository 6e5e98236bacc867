// Package llm wraps the Gemini generative language API behind a small
// Provider interface so the pipeline and research layers can be tested
// against fakes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProviderGemini identifies the Gemini backend in logs and responses.
const ProviderGemini = "gemini"

// Common errors returned by the provider.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Request configures a single generation call.
type Request struct {
	// System is the system instruction, empty to omit.
	System string
	// Prompt is the user turn.
	Prompt string
	// Temperature overrides the provider default when > 0.
	Temperature float64
	// MaxTokens caps the completion length when > 0.
	MaxTokens int
	// JSONOutput asks the model for a JSON response body.
	JSONOutput bool
	// WebSearch enables the built-in web grounding tool.
	WebSearch bool
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is a complete generation result.
type Response struct {
	Content  string        `json:"content"`
	Usage    Usage         `json:"usage"`
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
}

// Provider is the generation backend interface.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Generate sends a single-turn request and returns the complete response.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Ping checks that the provider is reachable and the API key is valid.
	Ping(ctx context.Context) error
}

// String returns a short summary of the response for logging.
func (r *Response) String() string {
	truncated := r.Content
	if len(truncated) > 100 {
		truncated = truncated[:100] + "..."
	}
	return fmt.Sprintf("[%s/%s] %q, %d tokens, %v",
		r.Provider, r.Model, truncated, r.Usage.TotalTokens, r.Latency.Round(time.Millisecond))
}
