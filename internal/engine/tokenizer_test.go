package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short word", text: "hello", want: 1},
		{name: "sentence", text: "hello world this is a test", want: 6},
		{name: "code snippet", text: "func main() { fmt.Println(\"hello\") }", want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestCountTokensForMessages(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: "Documents contain:\nParis is the capital of France."},
		{Role: RoleUser, Content: "hello"},
	}

	got, err := CountTokensForMessages(DefaultTokenizer{}, messages, "llama3.2")
	require.NoError(t, err)
	// role + content + 4 overhead per message
	require.GreaterOrEqual(t, got, 2*4+2)
}

func TestTiktokenTokenizer(t *testing.T) {
	tok := NewTiktokenTokenizer()

	n, err := tok.CountTokens("", "llama3.2")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	n, err = tok.CountTokens("Paris is the capital of France.", "llama3.2")
	require.NoError(t, err)
	require.Positive(t, n)
	require.Less(t, n, 20)
}
