package store

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
)

// GetResult holds a full collection dump as parallel arrays.
type GetResult struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
}

// Collection is the collection-store backend shape: inserts take explicit
// ids, documents and metadatas as parallel arrays, and Get returns every
// record in no particular order.
type Collection interface {
	Name() string
	Add(ctx context.Context, ids []string, documents []string, metadatas []Metadata) error
	Get(ctx context.Context) (GetResult, error)
	Close() error
}

// CollectionStore adapts a Collection to the Store contract and restores
// chronological order on read.
type CollectionStore struct {
	*recorder
	coll Collection
}

var _ Store = (*CollectionStore)(nil)

func NewCollectionStore(ctx context.Context, coll Collection, opts Options) (*CollectionStore, error) {
	s := &CollectionStore{recorder: newRecorder(coll.Name(), opts), coll: coll}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := coll.Get(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := res.records()
	if err != nil {
		return nil, err
	}
	s.seed(existing)
	return s, nil
}

func (s *CollectionStore) Backend() string {
	return s.coll.Name()
}

func (s *CollectionStore) Insert(ctx context.Context, role conversation.Role, content string, meta Metadata) (string, error) {
	rec, err := s.prepare(role, content, meta)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err = s.coll.Add(ctx, []string{rec.ID}, []string{rec.Document}, []Metadata{rec.Metadata})
	if err != nil {
		return "", s.fail("add", err)
	}
	return rec.ID, nil
}

func (s *CollectionStore) ListAll(ctx context.Context) ([]Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.coll.Get(ctx)
	if err != nil {
		return nil, s.fail("get", err)
	}
	records, err := res.records()
	if err != nil {
		return nil, err
	}
	SortRecords(records)
	return records, nil
}

func (s *CollectionStore) Close() error {
	return s.coll.Close()
}

func (g GetResult) records() ([]Record, error) {
	if len(g.IDs) != len(g.Documents) || len(g.IDs) != len(g.Metadatas) {
		return nil, fmt.Errorf("collection returned mismatched arrays: %d ids, %d documents, %d metadatas",
			len(g.IDs), len(g.Documents), len(g.Metadatas))
	}
	out := make([]Record, len(g.IDs))
	for i := range g.IDs {
		out[i] = Record{ID: g.IDs[i], Document: g.Documents[i], Metadata: g.Metadatas[i]}
	}
	return out, nil
}
