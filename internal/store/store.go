// Package store persists conversation turns as append-only records and reads
// them back in chronological order. Two backend shapes are supported: a
// document database (sqlite, redis streams) and a collection store (bleve).
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/pkg/errors"
)

var (
	// ErrValidation is matched by every error caused by bad input.
	ErrValidation = errors.New("store: validation failed")
	// ErrUnavailable is matched by every error returned by a disabled store.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// Field names shared by all backends.
const (
	FieldID        = "record_id"
	FieldDocument  = "document"
	FieldRole      = "role"
	FieldModel     = "model"
	FieldTimestamp = "timestamp"
	FieldSeq       = "seq"
	FieldSession   = "session"
	FieldSource    = "source"
)

// Metadata is stored alongside every record.
type Metadata struct {
	Role      conversation.Role `json:"role" yaml:"role"`
	Model     string            `json:"model,omitempty" yaml:"model,omitempty"`
	Timestamp int64             `json:"timestamp" yaml:"timestamp"`
	Seq       int64             `json:"seq" yaml:"seq"`
	Session   string            `json:"session,omitempty" yaml:"session,omitempty"`
	Source    string            `json:"source,omitempty" yaml:"source,omitempty"` // uploaded file name
}

// Record is the persisted form of a turn.
type Record struct {
	ID       string   `json:"id" yaml:"id"`
	Document string   `json:"document" yaml:"document"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Store is the uniform contract over every backend.
type Store interface {
	// Insert validates and appends one record, returning its id.
	Insert(ctx context.Context, role conversation.Role, content string, meta Metadata) (string, error)
	// ListAll returns every record ordered by timestamp, then insertion sequence.
	ListAll(ctx context.Context) ([]Record, error)
	// Backend names the underlying backend.
	Backend() string
	Close() error
}

// ValidationError reports input rejected before any backend call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnavailableError reports a backend that could not be reached.
type UnavailableError struct {
	Backend string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s store unavailable: %v", e.Backend, e.Cause)
	}
	return fmt.Sprintf("%s store unavailable", e.Backend)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// SortRecords orders records by timestamp ascending, then by sequence.
// Records that tie on both keep their relative order.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Metadata, records[j].Metadata
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.Seq < b.Seq
	})
}

func maxSeq(records []Record) int64 {
	var highest int64
	for _, r := range records {
		if r.Metadata.Seq > highest {
			highest = r.Metadata.Seq
		}
	}
	return highest
}
