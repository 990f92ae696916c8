// Package llm provides LLM client implementations.
//
// Clients are deliberately text-in/text-out: the caller assembles one flat
// prompt string carrying the full conversation and tool instructions, and
// the model replies with plain text. Tool-call detection happens upstream
// in the agent, never here.
package llm

import "context"

// StreamCallback is called for each streamed token.
type StreamCallback func(token string)

// Client is the interface that all LLM providers must implement.
type Client interface {
	// Generate sends a single flat prompt and returns the complete response text.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream sends a flat prompt and streams tokens to callback as
	// they arrive. It returns the full accumulated response text. A nil
	// callback degrades to non-streaming behavior.
	GenerateStream(ctx context.Context, prompt string, callback StreamCallback) (string, error)

	// Ping checks if the provider is reachable. Used as a preflight before
	// starting a conversation turn so the user gets a clear connectivity
	// message instead of a mid-turn timeout.
	Ping(ctx context.Context) error
}
