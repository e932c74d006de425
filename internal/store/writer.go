package store

import (
	"context"
	"sync"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/rs/zerolog/log"
)

// Writer queues inserts and applies them on a single goroutine, in the
// order they were enqueued, so callers never wait on the backend.
type Writer struct {
	store   Store
	jobs    chan writeJob
	onError func(Record, error)

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

type writeJob struct {
	rec   Record // Document and Metadata only; the id is assigned by the store
	flush chan struct{}
}

// NewWriter starts the writer goroutine. onError, when set, is called on the
// writer goroutine for every failed insert.
func NewWriter(s Store, buffer int, onError func(Record, error)) *Writer {
	if buffer <= 0 {
		buffer = 64
	}
	w := &Writer{
		store:   s,
		jobs:    make(chan writeJob, buffer),
		onError: onError,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	defer close(w.done)
	for job := range w.jobs {
		if job.flush != nil {
			close(job.flush)
			continue
		}
		m := job.rec.Metadata
		id, err := w.store.Insert(context.Background(), m.Role, job.rec.Document, m)
		if err != nil {
			if w.onError != nil {
				w.onError(job.rec, err)
			}
			continue
		}
		log.Debug().Str("id", id).Str("role", string(m.Role)).Str("backend", w.store.Backend()).Msg("store: record persisted")
	}
}

// Enqueue schedules an insert. It only blocks when the queue is full.
func (w *Writer) Enqueue(role conversation.Role, content string, meta Metadata) {
	meta.Role = role
	w.send(writeJob{rec: Record{Document: content, Metadata: meta}})
}

// Flush waits until every insert enqueued before the call has been applied.
func (w *Writer) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	if !w.send(writeJob{flush: marker}) {
		return nil
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) send(job writeJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		if job.flush == nil {
			log.Warn().Str("role", string(job.rec.Metadata.Role)).Msg("store: writer closed, dropping record")
		}
		return false
	}
	w.jobs <- job
	return true
}

// Close drains the queue and stops the writer. It does not close the store.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
	return nil
}
