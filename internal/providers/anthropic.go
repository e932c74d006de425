package providers

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/localchat/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicClient implements engine.ModelClient with the Anthropic SDK.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client. baseURL may be empty.
func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(apiKey, opts...)}
}

// toAnthropicMessages splits system turns out of the conversation, since the
// API takes them as a separate field.
func toAnthropicMessages(messages []engine.ChatMessage) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	var systemParts []anthropic.MessageSystemPart
	var msgs []anthropic.Message
	for _, msg := range messages {
		switch msg.Role {
		case engine.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
		case engine.RoleUser:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		case engine.RoleAssistant:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}
	return systemParts, msgs
}

// Stream implements engine.ModelClient.
// The SDK uses callback-based streaming, which we adapt to channels.
func (c *AnthropicClient) Stream(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		systemParts, msgs := toAnthropicMessages(messages)

		maxTokens := 4096
		if opts.MaxOutputTokens > 0 {
			maxTokens = opts.MaxOutputTokens
		}
		req := anthropic.MessagesStreamRequest{
			MessagesRequest: anthropic.MessagesRequest{
				Model:     anthropic.Model(modelName),
				Messages:  msgs,
				MaxTokens: maxTokens,
			},
		}
		if opts.Temperature > 0 {
			temperature := opts.Temperature
			req.Temperature = &temperature
		}
		if len(systemParts) > 0 {
			req.MultiSystem = systemParts
		}

		var streamErr error
		req.OnError = func(errResp anthropic.ErrorResponse) {
			if streamErr == nil && errResp.Error != nil {
				streamErr = fmt.Errorf("anthropic streaming error: %s", errResp.Error.Message)
			}
		}
		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type != "text_delta" || delta.Delta.Text == nil {
				return
			}
			select {
			case eventCh <- engine.StreamEvent{Type: engine.EventTextDelta, Text: *delta.Delta.Text}:
			case <-ctx.Done():
			}
		}

		resp, err := c.client.CreateMessagesStream(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		if streamErr != nil {
			errCh <- streamErr
			return
		}
		if ctx.Err() != nil {
			errCh <- ctx.Err()
			return
		}

		if resp.Usage.InputTokens > 0 {
			select {
			case eventCh <- engine.StreamEvent{Type: engine.EventUsage, Usage: engine.Usage{
				Prompt:     resp.Usage.InputTokens,
				Completion: resp.Usage.OutputTokens,
				Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			}}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- nil
	}()

	return eventCh, errCh
}
