package store

import (
	"context"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
)

// DocumentDB is the document-database backend shape: one document per
// insert, listing through a query sorted by fields.
type DocumentDB interface {
	Name() string
	InsertOne(ctx context.Context, rec Record) error
	// Find returns every record sorted by the given fields, ascending.
	Find(ctx context.Context, sortBy ...string) ([]Record, error)
	Close() error
}

// DocumentStore adapts a DocumentDB to the Store contract.
type DocumentStore struct {
	*recorder
	db DocumentDB
}

var _ Store = (*DocumentStore)(nil)

// NewDocumentStore wraps db. Existing records seed the insertion sequence,
// so a failing read here means the backend is not usable.
func NewDocumentStore(ctx context.Context, db DocumentDB, opts Options) (*DocumentStore, error) {
	s := &DocumentStore{recorder: newRecorder(db.Name(), opts), db: db}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	existing, err := db.Find(ctx, FieldTimestamp, FieldSeq)
	if err != nil {
		return nil, err
	}
	s.seed(existing)
	return s, nil
}

func (s *DocumentStore) Backend() string {
	return s.db.Name()
}

func (s *DocumentStore) Insert(ctx context.Context, role conversation.Role, content string, meta Metadata) (string, error) {
	rec, err := s.prepare(role, content, meta)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.db.InsertOne(ctx, rec); err != nil {
		return "", s.fail("insert", err)
	}
	return rec.ID, nil
}

func (s *DocumentStore) ListAll(ctx context.Context) ([]Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	records, err := s.db.Find(ctx, FieldTimestamp, FieldSeq)
	if err != nil {
		return nil, s.fail("list", err)
	}
	return records, nil
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}
