package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the in-memory state of one interactive run: the conversation
// log and the uploaded documents. Both are reset together by Clear.
type Session struct {
	ID string

	mu        sync.Mutex
	log       Log
	documents Documents
	lastStamp int64
	now       func() time.Time
}

// NewSession creates an empty session with a fresh ID.
func NewSession() *Session {
	return NewSessionWithClock(time.Now)
}

// NewSessionWithClock creates an empty session that stamps turns using now.
func NewSessionWithClock(now func() time.Time) *Session {
	return &Session{
		ID:  uuid.NewString(),
		now: now,
	}
}

// Stamp returns the current time in seconds, never lower than a previously
// issued stamp.
func (s *Session) Stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stampLocked()
}

func (s *Session) stampLocked() int64 {
	ts := s.now().Unix()
	if ts < s.lastStamp {
		ts = s.lastStamp
	}
	s.lastStamp = ts
	return ts
}

// Append adds turn to the log, stamping it if it has no timestamp.
func (s *Session) Append(turn Turn) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.Timestamp == 0 {
		turn.Timestamp = s.stampLocked()
	}
	s.log.Append(turn)
	return turn
}

// Turns returns a snapshot of the conversation log.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.All()
}

// Last returns the most recent turn of the log.
func (s *Session) Last() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Last()
}

// AddDocument appends doc to the uploaded documents.
func (s *Session) AddDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents.Add(doc)
}

// Documents returns a snapshot of the uploaded documents.
func (s *Session) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documents.All()
}

// Clear empties the log and the documents in one step.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Clear()
	s.documents.Clear()
}
