// Package chat ties user actions to the conversation log, the model and the
// durable store.
package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/ChamsBouzaiene/localchat/internal/engine"
	"github.com/ChamsBouzaiene/localchat/internal/store"
	"github.com/ChamsBouzaiene/localchat/internal/upload"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// UploadModel is recorded as the model of persisted document records.
const UploadModel = "file_upload"

var (
	// ErrEmptyPrompt is returned by Submit for blank input.
	ErrEmptyPrompt = fmt.Errorf("%w: prompt is empty", store.ErrValidation)
	// ErrUnknownModel is returned by SetModel for names outside the configured list.
	ErrUnknownModel = errors.New("unknown model")
)

// State of the controller.
type State int32

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	if s == AwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// Options configure a Controller.
type Options struct {
	Model   string
	Models  []string // allowed models; empty means any
	Session *conversation.Session
	// FlushTimeout bounds how long History waits for pending writes.
	FlushTimeout time.Duration
}

// Controller is the per-session state machine. All operations are
// serialized: one turn is in flight at a time.
type Controller struct {
	mu       sync.Mutex
	session  *conversation.Session
	agg      *engine.Aggregator
	store    store.Store
	writer   *store.Writer
	renderer Renderer

	model        string
	models       []string
	flushTimeout time.Duration

	state           atomic.Int32
	unavailableOnce sync.Once
}

// NewController wires a session to its collaborators. The controller owns a
// store.Writer; Close drains it.
func NewController(agg *engine.Aggregator, st store.Store, r Renderer, opts Options) *Controller {
	if r == nil {
		r = NopRenderer{}
	}
	c := &Controller{
		session:      opts.Session,
		agg:          agg,
		store:        st,
		renderer:     r,
		model:        opts.Model,
		models:       slices.Clone(opts.Models),
		flushTimeout: opts.FlushTimeout,
	}
	if c.session == nil {
		c.session = conversation.NewSession()
	}
	if c.model == "" && len(c.models) > 0 {
		c.model = c.models[0]
	}
	if c.flushTimeout <= 0 {
		c.flushTimeout = 10 * time.Second
	}
	c.writer = store.NewWriter(st, 0, c.persistFailed)
	return c
}

// Session returns the in-memory session.
func (c *Controller) Session() *conversation.Session {
	return c.session
}

// State reports whether a response is being produced.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Submit records a user prompt and produces the assistant answer.
// Model failures are not returned: they become the assistant turn.
func (c *Controller) Submit(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	turn := c.session.Append(conversation.Turn{Role: conversation.RoleUser, Content: prompt})
	log.Info().Str("session", c.session.ID).Int("chars", len(prompt)).Msg("chat: user input")
	c.renderer.Transcript(c.session.Turns())
	c.persist(turn, "")

	return c.respond(ctx)
}

// Respond produces an answer if the last turn is from the user.
func (c *Controller) Respond(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.respond(ctx)
}

func (c *Controller) respond(ctx context.Context) error {
	last, ok := c.session.Last()
	if !ok || last.Role != conversation.RoleUser {
		return nil
	}

	c.state.Store(int32(AwaitingResponse))
	defer c.state.Store(int32(Idle))

	model := c.model
	turns := engine.Compose(c.session.Turns(), c.session.Documents())
	resp, err := c.agg.Aggregate(ctx, model, turns, c.renderer.Progress)
	if ctx.Err() != nil {
		// Only reached on teardown (the CLI cancels ctx when the session
		// ends), so the unpaired user turn is never followed by another.
		// Partial output is discarded.
		return ctx.Err()
	}
	if err != nil {
		log.Error().Err(err).Str("model", model).Msg("chat: answer replaced by placeholder")
	}

	turn := c.session.Append(conversation.Turn{
		Role:    conversation.RoleAssistant,
		Content: resp.Content(),
		Model:   model,
	})
	log.Info().Str("model", model).Dur("duration", resp.Elapsed).Bool("failed", resp.Failed()).
		Int("prompt_tokens", resp.Usage.Prompt).Int("completion_tokens", resp.Usage.Completion).
		Msg("chat: response")
	c.renderer.Transcript(c.session.Turns())
	c.persist(turn, "")
	return nil
}

// UploadResult reports how one file of a batch was handled.
type UploadResult struct {
	Name string
	Err  error
}

// Upload decodes every file independently. Rejected files do not stop the
// batch; a cancelled ctx does, and the files not reached report ctx.Err().
func (c *Controller) Upload(ctx context.Context, files []upload.File) []UploadResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]UploadResult, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			results = append(results, UploadResult{Name: f.Name, Err: err})
			continue
		}
		doc, err := upload.Decode(f)
		if err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("chat: upload rejected")
			c.renderer.UploadRejected(f.Name, err)
			results = append(results, UploadResult{Name: f.Name, Err: err})
			continue
		}
		c.session.AddDocument(doc)
		c.persist(conversation.Turn{
			Role:      conversation.RoleSystem,
			Content:   doc.Text,
			Model:     UploadModel,
			Timestamp: c.session.Stamp(),
		}, doc.SourceName)
		c.renderer.UploadAccepted(f.Name)
		results = append(results, UploadResult{Name: f.Name})
	}
	return results
}

// Clear resets the working session. Persisted history is kept.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Clear()
	log.Info().Str("session", c.session.ID).Msg("chat: cleared")
	c.renderer.Cleared()
}

// History renders every persisted record, after pending writes landed.
func (c *Controller) History(ctx context.Context) ([]store.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(ctx, c.flushTimeout)
	defer cancel()
	if err := c.writer.Flush(flushCtx); err != nil {
		log.Warn().Err(err).Msg("chat: pending writes not flushed")
	}

	records, err := c.store.ListAll(ctx)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			c.reportUnavailable(err)
		} else {
			c.renderer.Notice(fmt.Sprintf("Error checking history: %v", err))
		}
		return nil, err
	}
	c.renderer.History(records)
	return records, nil
}

// Model returns the model used for the next answer.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Models returns the configured model list.
func (c *Controller) Models() []string {
	return slices.Clone(c.models)
}

// SetModel selects the model for subsequent answers.
func (c *Controller) SetModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Wrap(ErrUnknownModel, "empty model name")
	}
	if len(c.models) > 0 && !slices.Contains(c.models, name) {
		return errors.Wrapf(ErrUnknownModel, "%q (available: %s)", name, strings.Join(c.models, ", "))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = name
	log.Info().Str("model", name).Msg("chat: model selected")
	return nil
}

// LastAssistant returns the most recent assistant turn, if any.
func (c *Controller) LastAssistant() (conversation.Turn, bool) {
	turns := c.session.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleAssistant {
			return turns[i], true
		}
	}
	return conversation.Turn{}, false
}

// Close waits for queued writes. The store itself is closed by its owner.
func (c *Controller) Close() error {
	return c.writer.Close()
}

func (c *Controller) persist(turn conversation.Turn, source string) {
	c.writer.Enqueue(turn.Role, turn.Content, store.Metadata{
		Model:     turn.Model,
		Timestamp: turn.Timestamp,
		Session:   c.session.ID,
		Source:    source,
	})
}

// persistFailed runs on the writer goroutine.
func (c *Controller) persistFailed(rec store.Record, err error) {
	if errors.Is(err, store.ErrUnavailable) {
		c.reportUnavailable(err)
		return
	}
	log.Error().Err(err).Str("role", string(rec.Metadata.Role)).Msg("chat: failed to persist turn")
}

func (c *Controller) reportUnavailable(err error) {
	c.unavailableOnce.Do(func() {
		log.Warn().Err(err).Msg("chat: persistence unavailable")
		c.renderer.Notice(fmt.Sprintf("History is not being saved: %v", err))
	})
}
