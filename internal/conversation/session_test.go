package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLog_AppendKeepsOrder(t *testing.T) {
	var l Log
	_, ok := l.Last()
	require.False(t, ok)

	l.Append(Turn{Role: RoleUser, Content: "a"})
	l.Append(Turn{Role: RoleAssistant, Content: "b"})
	l.Append(Turn{Role: RoleUser, Content: "a"})

	all := l.All()
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].Content)
	require.Equal(t, "b", all[1].Content)
	require.Equal(t, "a", all[2].Content)

	last, ok := l.Last()
	require.True(t, ok)
	require.Equal(t, RoleUser, last.Role)
}

func TestLog_AllIsSnapshot(t *testing.T) {
	var l Log
	l.Append(Turn{Role: RoleUser, Content: "hello"})

	snap := l.All()
	snap[0].Content = "mutated"

	require.Equal(t, "hello", l.All()[0].Content)
}

func TestSession_ClearResetsLogAndDocuments(t *testing.T) {
	s := NewSession()
	s.Append(Turn{Role: RoleUser, Content: "one"})
	s.Append(Turn{Role: RoleAssistant, Content: "two", Model: "llama3.2"})
	s.Append(Turn{Role: RoleUser, Content: "three"})
	s.AddDocument(Document{SourceName: "notes.txt", Text: "Paris is the capital of France."})

	require.Len(t, s.Turns(), 3)
	require.Len(t, s.Documents(), 1)

	s.Clear()

	require.Empty(t, s.Turns())
	require.Empty(t, s.Documents())
	_, ok := s.Last()
	require.False(t, ok)
}

func TestSession_StampNeverDecreases(t *testing.T) {
	times := []time.Time{
		time.Unix(100, 0),
		time.Unix(90, 0),
		time.Unix(101, 0),
	}
	i := 0
	s := NewSessionWithClock(func() time.Time {
		ts := times[i%len(times)]
		i++
		return ts
	})

	var stamps []int64
	for range 3 {
		stamps = append(stamps, s.Stamp())
	}
	require.Equal(t, []int64{100, 100, 101}, stamps)
}

func TestSession_AppendStampsMissingTimestamp(t *testing.T) {
	s := NewSessionWithClock(func() time.Time { return time.Unix(42, 0) })
	got := s.Append(Turn{Role: RoleUser, Content: "hi"})
	require.Equal(t, int64(42), got.Timestamp)
	require.NotEmpty(t, s.ID)
}
