// Package llm provides a provider-agnostic chat/generate/stream contract
// (spec.md §6 "LLM service") with two concrete providers: a local HTTP JSON
// provider streaming NDJSON frames (grounded in sse-rag-service's
// streamGeneration / generateEmbedding Ollama calls) and a cloud SDK
// provider (github.com/sashabaranov/go-openai, from the retrieval pack's
// PerceptivePenguin-MCPRAG-Go).
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatOptions configures one chat/generate call. Every provider honors
// Temperature and MaxTokens; a zero Temperature is a valid, meaningful value
// (deterministic generation, spec.md §4.8) so callers must not rely on the
// zero value to mean "unset" — always set it explicitly.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// StreamChunk is one incremental token emitted by a streaming call.
type StreamChunk struct {
	Token string
	Done  bool
	Err   error
}

// Provider is the abstract contract every LLM backend implements.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, *Usage, error)
	ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamChunk, error)
	Generate(ctx context.Context, prompt string, opts ChatOptions) (string, *Usage, error)
	GenerateStream(ctx context.Context, prompt string, opts ChatOptions) (<-chan StreamChunk, error)
	HealthCheck(ctx context.Context) error
}
