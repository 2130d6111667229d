// Package service holds small cross-cutting domain contracts shared by
// more than one component — the LLM client interface every provider
// (internal/infrastructure/llm/*) and every consumer (Intent Parser,
// Context Store summarizer, Streaming Synthesizer) is built against,
// plus request tracing helpers.
package service

import (
	"context"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// LLMMessage is one turn of a chat-completion request or response.
type LLMMessage struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolCallID string // set on a "tool" role message: which call this answers
	ToolCalls  []entity.ToolCallInfo
}

// ToolDefinition describes one function a provider may call in place of
// (or in addition to) returning text.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema
}

// LLMRequest is the provider-agnostic shape every Provider.Generate
// call takes.
type LLMRequest struct {
	Model       string
	Messages    []LLMMessage
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// LLMResponse is the provider-agnostic shape every Provider.Generate
// call returns.
type LLMResponse struct {
	Content    string
	ToolCalls  []entity.ToolCallInfo
	ModelUsed  string
	TokensUsed int
}

// StreamChunk is one increment of a GenerateStream call: either a text
// delta, a completed tool call, or (on the final chunk) a finish reason.
type StreamChunk struct {
	DeltaText     string
	DeltaToolCall *entity.ToolCallInfo
	FinishReason  string
}

// LLMClient is the contract every provider (internal/infrastructure/llm/
// anthropic, gemini, openai) and the Router that fans out across them
// implement.
type LLMClient interface {
	Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
	GenerateStream(ctx context.Context, req *LLMRequest, deltaCh chan<- StreamChunk) (*LLMResponse, error)
}
