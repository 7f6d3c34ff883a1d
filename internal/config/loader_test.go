package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ZN_TEST_KEY", "sk-123")

	got := expandEnv("a: ${ZN_TEST_KEY}\nb: ${ZN_TEST_MISSING:fallback}\nc: ${ZN_TEST_MISSING}")
	want := "a: sk-123\nb: fallback\nc: ${ZN_TEST_MISSING}"
	if got != want {
		t.Fatalf("expandEnv() = %q, want %q", got, want)
	}
}

func TestLoadFrom_LayersEnvFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("ZN_OPENROUTER_KEY", "sk-or")

	writeConfig(t, dir, "config.yaml", `
database:
  driver: sqlite
  sqlite:
    path: /tmp/novels.db
llm:
  default_provider: openrouter
  providers:
    openrouter:
      api_key: ${ZN_OPENROUTER_KEY}
      base_url: https://openrouter.ai/api/v1
      model: deepseek/deepseek-chat-v3-0324
translation:
  workers: 4
`)
	writeConfig(t, dir, "config.test.yaml", `
translation:
  workers: 2
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "sk-or", cfg.LLM.Providers["openrouter"].APIKey)
	assert.Equal(t, 2, cfg.Translation.Workers)
	assert.Equal(t, 1500, cfg.Translation.ChunkSize)
	assert.True(t, cfg.Novel.MergeMissingStates)
	assert.Equal(t, 5*time.Second, cfg.Database.SQLite.BusyTimeout)
	assert.Len(t, cfg.Translation.Languages, 7)
}

func TestLoadFrom_RejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")

	writeConfig(t, dir, "config.yaml", `
llm:
  default_provider: missing
`)

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}
