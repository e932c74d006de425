// Package config loads the user's preferences from the config file, the
// environment and .env files.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultModels are offered when no model list is configured.
var DefaultModels = []string{"llama3.2", "llama3.1 8b", "phi3", "mistral"}

const (
	DefaultStoreTimeout = 5 * time.Second
	DefaultModelTimeout = 2 * time.Minute
)

// Config holds the user's persistent configuration preferences.
type Config struct {
	Provider     string   `json:"provider,omitempty" yaml:"provider"` // ollama, lmstudio, openai, anthropic
	Model        string   `json:"model,omitempty" yaml:"model"`       // default model name
	Models       []string `json:"models,omitempty" yaml:"models"`     // models offered by /model
	BaseURL      string   `json:"base_url,omitempty" yaml:"base_url"` // optional override for the API base URL
	APIKey       string   `json:"api_key,omitempty" yaml:"api_key"`   // key for hosted providers
	Backend      string   `json:"backend,omitempty" yaml:"backend"`   // sqlite, redis, bleve, none
	SQLitePath   string   `json:"sqlite_path,omitempty" yaml:"sqlite_path"`
	RedisAddr    string   `json:"redis_addr,omitempty" yaml:"redis_addr"`
	RedisStream  string   `json:"redis_stream,omitempty" yaml:"redis_stream"`
	BlevePath    string   `json:"bleve_path,omitempty" yaml:"bleve_path"`
	StoreTimeout Duration `json:"store_timeout,omitempty" yaml:"store_timeout"`
	ModelTimeout Duration `json:"model_timeout,omitempty" yaml:"model_timeout"`
	InboxDir     string   `json:"inbox_dir,omitempty" yaml:"inbox_dir"` // watched upload directory; empty disables it
	Markdown     bool     `json:"markdown" yaml:"markdown"`             // render answers as markdown
	LogLevel     string   `json:"log_level,omitempty" yaml:"log_level"`

	// Sampling knobs forwarded to the model; zero leaves the server default.
	Temperature     float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "********"
	}
	c.Models = append([]string(nil), c.Models...)
	return c
}

// Validate checks the configuration against the schema.
func (c *Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return ValidateJSON(data)
}

// Duration is a time.Duration written as a Go duration string ("5s", "2m").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			log.Debug().Str("path", p).Msg("config: loaded env file")
		}
	}
}

// ApplyEnv overrides cfg with LOCALCHAT_* variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	str := map[string]*string{
		"LOCALCHAT_PROVIDER":     &cfg.Provider,
		"LOCALCHAT_MODEL":        &cfg.Model,
		"LOCALCHAT_BASE_URL":     &cfg.BaseURL,
		"LOCALCHAT_API_KEY":      &cfg.APIKey,
		"LOCALCHAT_BACKEND":      &cfg.Backend,
		"LOCALCHAT_SQLITE_PATH":  &cfg.SQLitePath,
		"LOCALCHAT_REDIS_ADDR":   &cfg.RedisAddr,
		"LOCALCHAT_REDIS_STREAM": &cfg.RedisStream,
		"LOCALCHAT_BLEVE_PATH":   &cfg.BlevePath,
		"LOCALCHAT_INBOX":        &cfg.InboxDir,
		"LOCALCHAT_LOG_LEVEL":    &cfg.LogLevel,
	}
	for key, dst := range str {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("LOCALCHAT_MODELS"); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		cfg.Models = models
	}

	durations := map[string]*Duration{
		"LOCALCHAT_STORE_TIMEOUT": &cfg.StoreTimeout,
		"LOCALCHAT_MODEL_TIMEOUT": &cfg.ModelTimeout,
	}
	for key, dst := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = Duration(d)
		}
	}

	if v := getenv("LOCALCHAT_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("LOCALCHAT_TEMPERATURE: %w", err)
		}
		cfg.Temperature = float32(f)
	}
	if v := getenv("LOCALCHAT_MAX_OUTPUT_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOCALCHAT_MAX_OUTPUT_TOKENS: %w", err)
		}
		cfg.MaxOutputTokens = n
	}

	if v := getenv("LOCALCHAT_MARKDOWN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOCALCHAT_MARKDOWN: %w", err)
		}
		cfg.Markdown = b
	}
	return nil
}
