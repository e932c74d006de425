package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/stretchr/testify/require"
)

func TestWriter_PreservesOrderAndFlushes(t *testing.T) {
	db := &mockDocumentDB{}
	s, err := NewDocumentStore(context.Background(), db, Options{Now: fixedClock(1000)})
	require.NoError(t, err)

	w := NewWriter(s, 4, nil)
	defer w.Close()

	for i := range 20 {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		w.Enqueue(role, fmt.Sprintf("turn %d", i), Metadata{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Flush(ctx))

	records, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 20)
	for i, r := range records {
		require.Equal(t, fmt.Sprintf("turn %d", i), r.Document)
	}
}

func TestWriter_ReportsFailures(t *testing.T) {
	s := Disabled("sqlite", fmt.Errorf("no disk"))

	var mu sync.Mutex
	var failed []string
	w := NewWriter(s, 0, func(rec Record, err error) {
		mu.Lock()
		defer mu.Unlock()
		require.ErrorIs(t, err, ErrUnavailable)
		failed = append(failed, rec.Document)
	})

	w.Enqueue(conversation.RoleUser, "a", Metadata{})
	w.Enqueue(conversation.RoleAssistant, "b", Metadata{})
	require.NoError(t, w.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b"}, failed)
}

func TestWriter_EnqueueAfterCloseIsDropped(t *testing.T) {
	db := &mockDocumentDB{}
	s, err := NewDocumentStore(context.Background(), db, Options{})
	require.NoError(t, err)

	w := NewWriter(s, 1, nil)
	require.NoError(t, w.Close())

	w.Enqueue(conversation.RoleUser, "late", Metadata{})
	require.NoError(t, w.Flush(context.Background()))
	require.Equal(t, 0, db.inserts)
}
