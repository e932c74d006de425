package store

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/stretchr/testify/require"
)

// mockDocumentDB records every call and keeps documents in memory.
type mockDocumentDB struct {
	mu        sync.Mutex
	records   []Record
	inserts   int
	finds     int
	insertErr error
	findErr   error
}

func (m *mockDocumentDB) Name() string { return "mock" }

func (m *mockDocumentDB) InsertOne(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockDocumentDB) Find(_ context.Context, _ ...string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := make([]Record, len(m.records))
	copy(out, m.records)
	SortRecords(out)
	return out, nil
}

func (m *mockDocumentDB) Close() error { return nil }

// shuffledCollection returns its contents in random order, like a store
// without ordering guarantees.
type shuffledCollection struct {
	res GetResult
	rnd *rand.Rand
}

func (c *shuffledCollection) Name() string { return "shuffled" }

func (c *shuffledCollection) Add(_ context.Context, ids []string, documents []string, metadatas []Metadata) error {
	c.res.IDs = append(c.res.IDs, ids...)
	c.res.Documents = append(c.res.Documents, documents...)
	c.res.Metadatas = append(c.res.Metadatas, metadatas...)
	return nil
}

func (c *shuffledCollection) Get(context.Context) (GetResult, error) {
	n := len(c.res.IDs)
	out := GetResult{
		IDs:       make([]string, n),
		Documents: make([]string, n),
		Metadatas: make([]Metadata, n),
	}
	for i, j := range c.rnd.Perm(n) {
		out.IDs[i] = c.res.IDs[j]
		out.Documents[i] = c.res.Documents[j]
		out.Metadatas[i] = c.res.Metadatas[j]
	}
	return out, nil
}

func (c *shuffledCollection) Close() error { return nil }

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestInsert_EmptyContentNeverReachesBackend(t *testing.T) {
	db := &mockDocumentDB{}
	s, err := NewDocumentStore(context.Background(), db, Options{})
	require.NoError(t, err)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := s.Insert(context.Background(), conversation.RoleUser, content, Metadata{})
		require.ErrorIs(t, err, ErrValidation)
	}
	require.Equal(t, 0, db.inserts)
}

func TestInsert_SameSecondProducesDistinctIDs(t *testing.T) {
	db := &mockDocumentDB{}
	s, err := NewDocumentStore(context.Background(), db, Options{SessionID: "s1", Now: fixedClock(1700000000)})
	require.NoError(t, err)

	ctx := context.Background()
	id1, err := s.Insert(ctx, conversation.RoleUser, "hello", Metadata{})
	require.NoError(t, err)
	id2, err := s.Insert(ctx, conversation.RoleUser, "hello", Metadata{})
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
	require.Equal(t, "1700000000-user-000001-s1", id1)
	require.Equal(t, "1700000000-user-000002-s1", id2)
}

func TestCollectionStore_ListAllRestoresChronologicalOrder(t *testing.T) {
	coll := &shuffledCollection{rnd: rand.New(rand.NewSource(7))}
	s, err := NewCollectionStore(context.Background(), coll, Options{})
	require.NoError(t, err)

	ctx := context.Background()
	// Several inserts share a timestamp; some arrive with an explicit older one.
	stamps := []int64{10, 10, 10, 12, 11, 12, 12, 9, 15, 15}
	for i, ts := range stamps {
		_, err := s.Insert(ctx, conversation.RoleUser, fmt.Sprintf("msg-%d", i), Metadata{Timestamp: ts})
		require.NoError(t, err)
	}

	for range 5 {
		records, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, records, len(stamps))
		requireChronological(t, records)
	}
}

func TestDocumentStore_SeedsSequenceFromExistingRecords(t *testing.T) {
	db := &mockDocumentDB{records: []Record{
		{ID: "old", Document: "x", Metadata: Metadata{Role: conversation.RoleUser, Timestamp: 5, Seq: 41}},
	}}
	s, err := NewDocumentStore(context.Background(), db, Options{SessionID: "s9", Now: fixedClock(5)})
	require.NoError(t, err)

	id, err := s.Insert(context.Background(), conversation.RoleAssistant, "y", Metadata{})
	require.NoError(t, err)
	require.Equal(t, "5-assistant-000042-s9", id)
}

func TestDocumentStore_UnreachableBackendDisablesStore(t *testing.T) {
	db := &mockDocumentDB{insertErr: fmt.Errorf("dial tcp 127.0.0.1:6379: %w", syscall.ECONNREFUSED)}
	s, err := NewDocumentStore(context.Background(), db, Options{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Insert(ctx, conversation.RoleUser, "hello", Metadata{})
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = s.Insert(ctx, conversation.RoleUser, "again", Metadata{})
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = s.ListAll(ctx)
	require.ErrorIs(t, err, ErrUnavailable)

	require.Equal(t, 1, db.inserts)
	require.Equal(t, 1, db.finds) // the seeding read only
}

func TestDocumentStore_OtherErrorsDoNotDisable(t *testing.T) {
	db := &mockDocumentDB{insertErr: fmt.Errorf("UNIQUE constraint failed: records.record_id")}
	s, err := NewDocumentStore(context.Background(), db, Options{})
	require.NoError(t, err)

	_, err = s.Insert(context.Background(), conversation.RoleUser, "hello", Metadata{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnavailable)

	db.insertErr = nil
	_, err = s.Insert(context.Background(), conversation.RoleUser, "hello", Metadata{})
	require.NoError(t, err)
}

func TestDisabled_ReturnsUnavailable(t *testing.T) {
	s := Disabled("sqlite", fmt.Errorf("permission denied"))

	_, err := s.Insert(context.Background(), conversation.RoleUser, "hello", Metadata{})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "permission denied")

	_, err = s.ListAll(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.NoError(t, s.Close())
}

func TestOpen_UnknownBackendIsDisabled(t *testing.T) {
	s, err := Open(context.Background(), Config{Backend: "mongo"})
	require.Error(t, err)
	require.NotNil(t, s)

	_, err = s.Insert(context.Background(), conversation.RoleUser, "hello", Metadata{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpen_NoneBackend(t *testing.T) {
	s, err := Open(context.Background(), Config{Backend: BackendNone})
	require.NoError(t, err)
	_, err = s.ListAll(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpen_UnreachableRedisFallsBackToDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{Backend: BackendRedis, RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
	require.Equal(t, BackendRedis, s.Backend())

	_, err = s.Insert(ctx, conversation.RoleUser, "hello", Metadata{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRetryWithPolicy_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	var retries []int
	got, err := retryWithPolicy(context.Background(), RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond},
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", fmt.Errorf("not yet")
			}
			return "ok", nil
		},
		func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) },
	)
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, []int{1, 2}, retries)
}

func TestRetryPolicy_DelayIsCapped(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	require.Equal(t, 100*time.Millisecond, p.delay(0))
	require.Equal(t, 200*time.Millisecond, p.delay(1))
	require.Equal(t, 300*time.Millisecond, p.delay(2))
}

func requireChronological(t *testing.T, records []Record) {
	t.Helper()
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1].Metadata, records[i].Metadata
		require.LessOrEqual(t, prev.Timestamp, cur.Timestamp, "record %d out of timestamp order", i)
		if prev.Timestamp == cur.Timestamp {
			require.Less(t, prev.Seq, cur.Seq, "record %d out of insertion order", i)
		}
	}
}
