// Package llm provides the language-model capability the classifier and
// the auto-reply drafter consume. Two backends exist: an OpenAI-compatible
// chat completions client and AWS Bedrock (Claude). Which one runs is an
// initialization concern of the coordinator, never of the callers.
package llm

import (
	"context"
	"errors"
)

// Client is the chat capability. Implementations must be safe for
// concurrent use and must honor the context deadline.
type Client interface {
	// Chat sends one system+user exchange and returns the assistant text.
	Chat(ctx context.Context, system, user string, temperature float64) (string, error)
}

// ErrNotConfigured is returned by a client whose credentials are missing.
var ErrNotConfigured = errors.New("llm: client not configured")

// ErrRateLimited is returned when the outbound limiter rejects a call
// before it reaches the provider.
var ErrRateLimited = errors.New("llm: rate limited")
