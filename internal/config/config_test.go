package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mia/internal/llm"
)

func env(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestParseDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Parse("mia", []string{"-e", filepath.Join(dir, "none.env")}, env(map[string]string{"GEMINI_API_KEY": "g-key"}), false)
	require.Error(t, err, "explicit env file must exist")

	cfg, err = Parse("mia", nil, env(map[string]string{"GEMINI_API_KEY": "g-key"}), false)
	require.NoError(t, err)

	assert.Equal(t, llm.BackendGemini, cfg.Backend)
	assert.Equal(t, "g-key", cfg.APIKey)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Speak)
	assert.False(t, cfg.Confirm)
	assert.Zero(t, cfg.Timeout)
	assert.Empty(t, cfg.Daemon.WakeWords)
}

func TestParseEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=file-key\nMIA_MODEL=gpt-5-mini\n"), 0o600))

	cfg, err := Parse("mia", []string{"--env", path, "-b", "openai", "--history", "6"}, env(nil), false)
	require.NoError(t, err)
	assert.Equal(t, llm.BackendOpenAI, cfg.Backend)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "gpt-5-mini", cfg.Model)
	assert.Equal(t, 6, cfg.HistoryWindow)

	cfg, err = Parse("mia", []string{"--env", path, "-b", "openai"}, env(map[string]string{"OPENAI_API_KEY": "proc-key"}), false)
	require.NoError(t, err)
	assert.Equal(t, "proc-key", cfg.APIKey)
}

func TestParseMissingKey(t *testing.T) {
	_, err := Parse("mia", []string{"-e", "/nonexistent/.env.default"}, env(nil), false)
	require.Error(t, err)

	_, err = Parse("mia", nil, env(nil), false)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestParseRejects(t *testing.T) {
	ok := env(map[string]string{"GEMINI_API_KEY": "k"})

	_, err := Parse("mia", []string{"-b", "llama"}, ok, false)
	assert.Error(t, err)

	_, err = Parse("mia", []string{"--history", "-1"}, ok, false)
	assert.Error(t, err)

	_, err = Parse("mia", []string{"--wake", "bhai"}, ok, false)
	assert.Error(t, err, "daemon flags are not registered for the cli")
}

func TestParseDaemon(t *testing.T) {
	cfg, err := Parse("mia-daemon", []string{"--wake", " Bhai, miya ,", "--cooldown", "2s", "--bus", "ws://hub/ws"},
		env(map[string]string{"GEMINI_API_KEY": "k"}), true)
	require.NoError(t, err)

	assert.Equal(t, []string{"bhai", "miya"}, cfg.Daemon.WakeWords)
	assert.Equal(t, 2*time.Second, cfg.Daemon.Cooldown)
	assert.Equal(t, "ws://hub/ws", cfg.Daemon.BusURL)
	assert.Equal(t, "/tmp/mia.sock", cfg.Daemon.Socket)
	assert.Equal(t, 4*time.Second, cfg.Daemon.SnippetMax)
	assert.Equal(t, 10*time.Second, cfg.Daemon.CommandMax)
	assert.True(t, cfg.Speak)

	_, err = Parse("mia-daemon", []string{"--wake", " , "}, env(map[string]string{"GEMINI_API_KEY": "k"}), true)
	assert.Error(t, err)
}
