package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Tokenizer provides token counting for text.
// Different models use different tokenization schemes, so the model name is required.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text for the specified model.
	CountTokens(text string, model string) (int, error)
}

// EstimateTokens provides a rough token count estimation.
// Uses a simple heuristic: ~4 characters per token for English/code.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	// (characters / 4) + (whitespace / 6)
	estimated := (charCount / 4) + (whitespaceCount / 6)
	if estimated < 1 {
		return 1
	}
	return estimated
}

// DefaultTokenizer uses estimation when no codec is available.
type DefaultTokenizer struct{}

// CountTokens implements Tokenizer using estimation.
func (t DefaultTokenizer) CountTokens(text string, model string) (int, error) {
	return EstimateTokens(text), nil
}

// TiktokenTokenizer counts with a BPE codec. Local models do not publish
// their vocabularies, so cl100k_base is used as an approximation for them.
type TiktokenTokenizer struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewTiktokenTokenizer returns a tokenizer whose codec is loaded on first use.
func NewTiktokenTokenizer() *TiktokenTokenizer {
	return &TiktokenTokenizer{}
}

func (t *TiktokenTokenizer) load() (tokenizer.Codec, error) {
	t.once.Do(func() {
		t.codec, t.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return t.codec, t.err
}

// CountTokens implements Tokenizer. It falls back to EstimateTokens when the
// codec cannot be loaded or fails on the input.
func (t *TiktokenTokenizer) CountTokens(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	codec, err := t.load()
	if err != nil {
		return EstimateTokens(text), nil
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return EstimateTokens(text), nil
	}
	return len(ids), nil
}

// CountTokensForMessages counts tokens for a slice of messages.
// It includes formatting overhead (role names, separators) in the count.
func CountTokensForMessages(tok Tokenizer, messages []ChatMessage, model string) (int, error) {
	total := 0
	for _, msg := range messages {
		roleTokens, err := tok.CountTokens(string(msg.Role), model)
		if err != nil {
			return 0, fmt.Errorf("failed to count role tokens: %w", err)
		}
		total += roleTokens

		contentTokens, err := tok.CountTokens(msg.Content, model)
		if err != nil {
			return 0, fmt.Errorf("failed to count content tokens: %w", err)
		}
		total += contentTokens

		// ~4 tokens of formatting per message
		total += 4
	}
	return total, nil
}
