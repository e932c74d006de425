package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ChamsBouzaiene/localchat/internal/engine"
)

// Provider names accepted by NewClient.
const (
	ProviderOllama    = "ollama"
	ProviderLMStudio  = "lmstudio"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default endpoints of the local servers.
const (
	DefaultOllamaBaseURL   = "http://localhost:11434/v1"
	DefaultLMStudioBaseURL = "http://localhost:1234/v1"
)

// Settings select and configure a provider.
type Settings struct {
	Provider string
	BaseURL  string
	APIKey   string
}

// ModelLister is implemented by clients that can enumerate served models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// NewClient creates an engine.ModelClient for the configured provider.
// Missing API keys fall back to the provider's usual environment variable.
func NewClient(s Settings) (engine.ModelClient, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		provider = ProviderOllama
	}

	switch provider {
	case ProviderOllama:
		// Ollama local server (OpenAI-compatible); any key is accepted
		baseURL := firstNonEmpty(s.BaseURL, os.Getenv("OLLAMA_BASE_URL"), DefaultOllamaBaseURL)
		apiKey := firstNonEmpty(s.APIKey, "ollama")
		return NewOpenAIClient(apiKey, baseURL), nil

	case ProviderLMStudio:
		baseURL := firstNonEmpty(s.BaseURL, os.Getenv("LMSTUDIO_BASE_URL"), DefaultLMStudioBaseURL)
		apiKey := firstNonEmpty(s.APIKey, "lm-studio")
		return NewOpenAIClient(apiKey, baseURL), nil

	case ProviderOpenAI:
		apiKey := firstNonEmpty(s.APIKey, os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(apiKey, firstNonEmpty(s.BaseURL, os.Getenv("OPENAI_BASE_URL"))), nil

	case ProviderAnthropic:
		apiKey := firstNonEmpty(s.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return NewAnthropicClient(apiKey, s.BaseURL), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: ollama, lmstudio, openai, anthropic)", s.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
