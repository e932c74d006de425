package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/rs/zerolog/log"
)

// DefaultModelTimeout bounds a whole model call.
const DefaultModelTimeout = 120 * time.Second

// Response is the outcome of one model call. It is always displayable:
// on failure Text holds a placeholder and Err the classified cause.
type Response struct {
	Text    string
	Model   string
	Elapsed time.Duration
	Usage   Usage
	Err     *StreamError
}

// Content is the text stored as the assistant turn.
func (r Response) Content() string {
	return fmt.Sprintf("%s\n\nDuration: %.2f seconds", r.Text, r.Elapsed.Seconds())
}

// Failed reports whether Text is a placeholder.
func (r Response) Failed() bool {
	return r.Err != nil
}

// Aggregator drives a streaming model call and folds its deltas into a
// single answer.
type Aggregator struct {
	client    ModelClient
	timeout   time.Duration
	opts      ChatOptions
	tokenizer Tokenizer
	now       func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTimeout sets the upper bound for one call.
func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithChatOptions sets the options forwarded to the model client.
func WithChatOptions(opts ChatOptions) AggregatorOption {
	return func(a *Aggregator) { a.opts = opts }
}

// WithTokenizer sets the tokenizer used to measure the outgoing context.
func WithTokenizer(t Tokenizer) AggregatorOption {
	return func(a *Aggregator) { a.tokenizer = t }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(client ModelClient, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		client:    client,
		timeout:   DefaultModelTimeout,
		tokenizer: DefaultTokenizer{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate sends turns to the model and returns the concatenated answer.
// onProgress, when set, receives the accumulated text after every delta.
//
// The returned Response is usable even when err is non-nil: failures are
// turned into placeholder text, and err carries the cause for logging.
func (a *Aggregator) Aggregate(ctx context.Context, model string, turns []conversation.Turn, onProgress func(partial string)) (Response, error) {
	msgs := MessagesFromTurns(turns)
	if n, err := CountTokensForMessages(a.tokenizer, msgs, model); err == nil {
		log.Debug().Str("model", model).Int("messages", len(msgs)).Int("tokens", n).Msg("engine: sending context")
	}

	start := a.now()
	text, usage, err := a.stream(ctx, model, msgs, onProgress)
	resp := Response{
		Text:    text,
		Model:   model,
		Elapsed: a.now().Sub(start),
		Usage:   usage,
	}
	if err != nil {
		resp.Err = NewStreamError(err)
		resp.Text = resp.Err.Placeholder()
		log.Warn().Err(err).Str("model", model).Str("kind", string(resp.Err.Kind)).Dur("elapsed", resp.Elapsed).
			Msg("engine: model call failed")
		return resp, resp.Err
	}
	log.Debug().Str("model", model).Dur("elapsed", resp.Elapsed).Int("chars", len(text)).Msg("engine: model call finished")
	return resp, nil
}

func (a *Aggregator) stream(parent context.Context, model string, msgs []ChatMessage, onProgress func(string)) (text string, usage Usage, err error) {
	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &StreamError{Kind: KindOther, Err: fmt.Errorf("model client panic: %v", r)}
		}
	}()

	deltaCh, errCh := a.client.Stream(ctx, model, msgs, a.opts)
	var buf strings.Builder

	for deltaCh != nil || errCh != nil {
		select {
		case ev, ok := <-deltaCh:
			if !ok {
				deltaCh = nil
				continue
			}
			switch ev.Type {
			case EventTextDelta:
				if ev.Text == "" {
					continue
				}
				buf.WriteString(ev.Text)
				if onProgress != nil {
					onProgress(buf.String())
				}
			case EventUsage:
				usage = ev.Usage
			}
		case e, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if e != nil {
				return "", usage, e
			}
			// nil means successful completion
			errCh = nil
		case <-ctx.Done():
			if parent.Err() == nil {
				return "", usage, &StreamError{Kind: KindTimeout, Err: fmt.Errorf("no complete answer within %s: %w", a.timeout, ctx.Err())}
			}
			return "", usage, &StreamError{Kind: KindOther, Err: parent.Err()}
		}
	}
	return buf.String(), usage, nil
}
