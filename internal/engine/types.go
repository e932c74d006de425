package engine

import (
	"context"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// MessagesFromTurns converts conversation turns into provider messages.
func MessagesFromTurns(turns []conversation.Turn) []ChatMessage {
	out := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, ChatMessage{Role: MessageRole(t.Role), Content: t.Content})
	}
	return out
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Stream event types.
const (
	EventTextDelta = "text_delta"
	EventUsage     = "usage"
)

// StreamEvent represents a streaming event from the model.
type StreamEvent struct {
	Type  string // "text_delta" | "usage"
	Text  string // for text_delta
	Usage Usage  // for usage
}

// ChatOptions keeps knobs forwarded to the SDK.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
}

// ModelClient abstracts the chosen SDK (OpenAI-compatible servers, Anthropic).
//
// Stream returns two channels. Events carry text deltas in arrival order.
// The error channel yields at most one value: nil on success, the failure
// otherwise. Both channels are closed when the stream ends.
type ModelClient interface {
	Stream(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (<-chan StreamEvent, <-chan error)
}
