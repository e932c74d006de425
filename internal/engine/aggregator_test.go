package engine

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/stretchr/testify/require"
)

// MockLLM replays canned deltas, then reports Err (nil for success).
type MockLLM struct {
	Deltas []string
	Err    error
	Usage  Usage // reported after the deltas when non-zero
	Block  bool  // never finish until ctx is done
	Panic  bool

	Model    string
	Messages []ChatMessage
	Opts     ChatOptions
}

func (m *MockLLM) Stream(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (<-chan StreamEvent, <-chan error) {
	if m.Panic {
		panic("boom")
	}
	m.Model = model
	m.Messages = messages
	m.Opts = opts

	deltaCh := make(chan StreamEvent)
	errCh := make(chan error, 1)
	go func() {
		defer close(deltaCh)
		defer close(errCh)
		for _, d := range m.Deltas {
			select {
			case deltaCh <- StreamEvent{Type: EventTextDelta, Text: d}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if m.Usage.Total > 0 {
			select {
			case deltaCh <- StreamEvent{Type: EventUsage, Usage: m.Usage}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if m.Block {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		errCh <- m.Err
	}()
	return deltaCh, errCh
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	t := time.Unix(1700000000, 0)
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func userTurn(content string) []conversation.Turn {
	return []conversation.Turn{{Role: conversation.RoleUser, Content: content}}
}

func TestAggregate_ConcatenatesDeltas(t *testing.T) {
	llm := &MockLLM{Deltas: []string{"Hel", "lo!"}}
	agg := NewAggregator(llm, WithClock(steppingClock(1500*time.Millisecond)))

	var progress []string
	resp, err := agg.Aggregate(context.Background(), "llama3.2", userTurn("hi"), func(partial string) {
		progress = append(progress, partial)
	})
	require.NoError(t, err)
	require.False(t, resp.Failed())
	require.Equal(t, "Hello!", resp.Text)
	require.Equal(t, []string{"Hel", "Hello!"}, progress)
	require.Equal(t, "Hello!\n\nDuration: 1.50 seconds", resp.Content())

	require.Equal(t, "llama3.2", llm.Model)
	require.Equal(t, []ChatMessage{{Role: RoleUser, Content: "hi"}}, llm.Messages)
}

func TestAggregate_ForwardsOptionsAndReportsUsage(t *testing.T) {
	llm := &MockLLM{Deltas: []string{"ok"}, Usage: Usage{Prompt: 12, Completion: 3, Total: 15}}
	opts := ChatOptions{Temperature: 0.2, MaxOutputTokens: 256}
	agg := NewAggregator(llm, WithChatOptions(opts))

	resp, err := agg.Aggregate(context.Background(), "llama3.2", userTurn("hi"), nil)
	require.NoError(t, err)
	require.Equal(t, opts, llm.Opts)
	require.Equal(t, Usage{Prompt: 12, Completion: 3, Total: 15}, resp.Usage)
	require.Equal(t, "ok", resp.Text)
}

func TestAggregate_ConnectionFailure(t *testing.T) {
	llm := &MockLLM{Err: fmt.Errorf("dial tcp 127.0.0.1:11434: %w", syscall.ECONNREFUSED)}
	agg := NewAggregator(llm)

	resp, err := agg.Aggregate(context.Background(), "llama3.2", userTurn("hi"), nil)
	require.Error(t, err)

	var se *StreamError
	require.ErrorAs(t, err, &se)
	require.Equal(t, KindConnection, se.Kind)
	require.True(t, resp.Failed())
	require.Equal(t, ConnectionFailedText, resp.Text)
	require.Contains(t, resp.Content(), "Duration: ")
}

func TestAggregate_PartialOutputDiscardedOnFailure(t *testing.T) {
	llm := &MockLLM{Deltas: []string{"half an"}, Err: errors.New("model exploded")}
	agg := NewAggregator(llm)

	resp, err := agg.Aggregate(context.Background(), "phi3", userTurn("hi"), nil)
	require.Error(t, err)
	require.Equal(t, KindOther, resp.Err.Kind)
	require.Equal(t, "An unexpected error occurred: model exploded", resp.Text)
}

func TestAggregate_TimeoutUsesConnectionPlaceholder(t *testing.T) {
	llm := &MockLLM{Deltas: []string{"thinking"}, Block: true}
	agg := NewAggregator(llm, WithTimeout(50*time.Millisecond))

	resp, err := agg.Aggregate(context.Background(), "mistral", userTurn("hi"), nil)
	require.Error(t, err)
	require.Equal(t, KindTimeout, resp.Err.Kind)
	require.Equal(t, ConnectionFailedText, resp.Text)
}

func TestAggregate_RecoversFromPanickingClient(t *testing.T) {
	agg := NewAggregator(&MockLLM{Panic: true})

	resp, err := agg.Aggregate(context.Background(), "llama3.2", userTurn("hi"), nil)
	require.Error(t, err)
	require.Equal(t, KindOther, resp.Err.Kind)
	require.Contains(t, resp.Text, "An unexpected error occurred: ")
	require.Contains(t, resp.Text, "boom")
}

func TestClassifyStreamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want StreamErrorKind
	}{
		{"refused", fmt.Errorf("post: %w", syscall.ECONNREFUSED), KindConnection},
		{"refused text", errors.New("Post \"http://localhost:11434/v1/chat/completions\": connection refused"), KindConnection},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{"timeout text", errors.New("Client.Timeout exceeded while awaiting headers (timeout)"), KindTimeout},
		{"already classified", &StreamError{Kind: KindTimeout, Err: errors.New("x")}, KindTimeout},
		{"model not found", errors.New("error, status code: 404, message: model \"llama9\" not found"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyStreamError(tt.err))
		})
	}
}
