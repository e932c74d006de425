package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a manager rooted at <UserConfigDir>/localchat.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return NewManagerAt(filepath.Join(configDir, "localchat")), nil
}

// NewManagerAt creates a manager rooted at dir.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// Dir returns the configuration directory. Default data files live here too.
func (m *Manager) Dir() string {
	return m.configDir
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Defaults returns the configuration used when nothing is set.
func (m *Manager) Defaults() *Config {
	return &Config{
		Provider:     "ollama",
		Model:        DefaultModels[0],
		Models:       append([]string(nil), DefaultModels...),
		Backend:      "sqlite",
		SQLitePath:   filepath.Join(m.configDir, "history.db"),
		RedisAddr:    "localhost:6379",
		RedisStream:  "localchat:records",
		BlevePath:    filepath.Join(m.configDir, "history.bleve"),
		StoreTimeout: Duration(DefaultStoreTimeout),
		ModelTimeout: Duration(DefaultModelTimeout),
		LogLevel:     "info",
	}
}

// Load reads the configuration from disk on top of the defaults.
// If the file does not exist, it returns the defaults and no error.
func (m *Manager) Load() (*Config, error) {
	cfg := m.Defaults()
	path := m.GetConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
func (m *Manager) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with 0600 permissions: the file may hold an API key
	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}
