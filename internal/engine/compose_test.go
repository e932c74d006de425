package engine

import (
	"testing"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/stretchr/testify/require"
)

func TestCompose_PrependsDocuments(t *testing.T) {
	history := []conversation.Turn{{Role: conversation.RoleUser, Content: "What is the capital?", Timestamp: 10}}
	docs := []conversation.Document{{SourceName: "notes.txt", Text: "Paris is the capital of France."}}

	got := Compose(history, docs)
	require.Len(t, got, 2)
	require.Equal(t, conversation.RoleSystem, got[0].Role)
	require.Equal(t, "Documents contain:\nParis is the capital of France.", got[0].Content)
	require.Equal(t, history[0], got[1])
}

func TestCompose_JoinsDocumentsWithBlankLine(t *testing.T) {
	docs := []conversation.Document{
		{SourceName: "a.txt", Text: "first"},
		{SourceName: "b.txt", Text: "second"},
	}
	got := Compose(nil, docs)
	require.Len(t, got, 1)
	require.Equal(t, "Documents contain:\nfirst\n\nsecond", got[0].Content)
}

func TestCompose_NoDocumentsReturnsHistoryCopy(t *testing.T) {
	history := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "hi"},
		{Role: conversation.RoleAssistant, Content: "hello"},
	}
	got := Compose(history, nil)
	require.Equal(t, history, got)

	got[0].Content = "changed"
	require.Equal(t, "hi", history[0].Content)
}
