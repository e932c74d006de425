package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearLocalchatEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOCALCHAT_PROVIDER", "LOCALCHAT_MODEL", "LOCALCHAT_MODELS", "LOCALCHAT_BASE_URL",
		"LOCALCHAT_API_KEY", "LOCALCHAT_BACKEND", "LOCALCHAT_SQLITE_PATH", "LOCALCHAT_REDIS_ADDR",
		"LOCALCHAT_REDIS_STREAM", "LOCALCHAT_BLEVE_PATH", "LOCALCHAT_INBOX", "LOCALCHAT_LOG_LEVEL",
		"LOCALCHAT_STORE_TIMEOUT", "LOCALCHAT_MODEL_TIMEOUT", "LOCALCHAT_MARKDOWN",
	} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	clearLocalchatEnv(t)
	dir := t.TempDir()

	out, err := execute(t, "--config-dir", dir, "--log-level", "error", "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, "config.json")

	_, err = execute(t, "--config-dir", dir, "--log-level", "error", "config", "init")
	require.Error(t, err)

	t.Setenv("LOCALCHAT_API_KEY", "sk-very-secret")
	out, err = execute(t, "--config-dir", dir, "--log-level", "error", "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, "provider: ollama")
	require.Contains(t, out, "backend: sqlite")
	require.NotContains(t, out, "sk-very-secret")
}

func TestHistoryCommand(t *testing.T) {
	clearLocalchatEnv(t)
	dir := t.TempDir()

	out, err := execute(t, "--config-dir", dir, "--log-level", "error", "history", "--format", "json")
	require.NoError(t, err)
	require.Equal(t, "[]\n", out)

	out, err = execute(t, "--config-dir", dir, "--log-level", "error", "history")
	require.NoError(t, err)
	require.Equal(t, "No records stored yet.\n", out)

	_, err = execute(t, "--config-dir", dir, "--log-level", "error", "history", "--format", "xml")
	require.Error(t, err)
}

func TestHistoryCommandWithoutBackend(t *testing.T) {
	clearLocalchatEnv(t)
	t.Setenv("LOCALCHAT_BACKEND", "none")

	_, err := execute(t, "--config-dir", t.TempDir(), "--log-level", "error", "history")
	require.Error(t, err)
}
