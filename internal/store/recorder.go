package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 5 * time.Second

// Options configure the adapter shared by both store shapes.
type Options struct {
	SessionID string
	Timeout   time.Duration
	Now       func() time.Time
}

// recorder holds the state common to every adapter: id sequencing,
// validation, the per-call timeout and the disabled flag.
type recorder struct {
	backend string
	session string
	handle  string // id discriminator shared by every record of this handle
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	seq      int64
	lastTS   int64
	disabled error
}

func newRecorder(backend string, opts Options) *recorder {
	r := &recorder{
		backend: backend,
		session: opts.SessionID,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.handle = r.session
	if r.handle == "" {
		r.handle = uuid.NewString()
	}
	return r
}

// seed makes the next sequence number follow the highest one already stored.
func (r *recorder) seed(existing []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := maxSeq(existing); s > r.seq {
		r.seq = s
	}
}

// prepare validates the input and assigns id, sequence and timestamp.
// It never touches the backend.
func (r *recorder) prepare(role conversation.Role, content string, meta Metadata) (Record, error) {
	if strings.TrimSpace(content) == "" {
		return Record{}, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if !role.Valid() {
		return Record{}, &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled != nil {
		return Record{}, r.disabled
	}

	ts := meta.Timestamp
	if ts == 0 {
		ts = r.now().Unix()
		if ts < r.lastTS {
			ts = r.lastTS
		}
	}
	if ts > r.lastTS {
		r.lastTS = ts
	}
	r.seq++

	meta.Role = role
	meta.Timestamp = ts
	meta.Seq = r.seq
	if meta.Session == "" {
		meta.Session = r.session
	}

	return Record{
		ID:       recordID(ts, role, r.seq, r.handle),
		Document: content,
		Metadata: meta,
	}, nil
}

// recordID derives an id that stays unique when several records share the
// same second (the sequence number) and when several handles append to the
// same backend, each seeding the same next sequence (the handle).
func recordID(ts int64, role conversation.Role, seq int64, handle string) string {
	return fmt.Sprintf("%d-%s-%06d-%s", ts, role, seq, handle)
}

func (r *recorder) check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

func (r *recorder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// fail records a backend error. Errors that mean the backend is gone
// disable the store for the rest of the session.
func (r *recorder) fail(op string, err error) error {
	if !isUnreachable(err) {
		return errors.Wrapf(err, "%s store: %s", r.backend, op)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled == nil {
		r.disabled = &UnavailableError{Backend: r.backend, Cause: err}
		log.Warn().Err(err).Str("backend", r.backend).Str("op", op).Msg("store: backend unreachable, persistence disabled")
	}
	return r.disabled
}

func isUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "client is closed") ||
		strings.Contains(msg, "index closed")
}
