package providers

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/ChamsBouzaiene/localchat/internal/engine"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient implements engine.ModelClient for any OpenAI-compatible
// server: Ollama, LM Studio and OpenAI itself.
type OpenAIClient struct {
	client  *openai.Client
	baseURL string
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		baseURL: baseURL,
	}
}

func toOpenAIMessages(messages []engine.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case engine.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case engine.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

// Stream implements engine.ModelClient.
func (c *OpenAIClient) Stream(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		req := openai.ChatCompletionRequest{
			Model:    modelName,
			Messages: toOpenAIMessages(messages),
			Stream:   true,
			StreamOptions: &openai.StreamOptions{
				IncludeUsage: true, // usage arrives in the final chunk
			},
		}
		if opts.MaxOutputTokens > 0 {
			req.MaxTokens = opts.MaxOutputTokens
		}
		if opts.Temperature > 0 {
			req.Temperature = &opts.Temperature
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		defer stream.Close()

		var usage engine.Usage
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- err
				return
			}

			// The usage chunk may carry no choices.
			if response.Usage != nil && response.Usage.TotalTokens > 0 {
				usage = engine.Usage{
					Prompt:     response.Usage.PromptTokens,
					Completion: response.Usage.CompletionTokens,
					Total:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) == 0 || response.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case eventCh <- engine.StreamEvent{Type: engine.EventTextDelta, Text: response.Choices[0].Delta.Content}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}

		if usage.Total > 0 {
			select {
			case eventCh <- engine.StreamEvent{Type: engine.EventUsage, Usage: usage}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- nil
	}()

	return eventCh, errCh
}

// ListModels returns the model ids the server reports, sorted.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}
