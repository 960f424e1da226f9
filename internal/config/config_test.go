package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Batch.Concurrency)
	assert.Equal(t, 30, cfg.Batch.ItemTimeoutSecs)
	assert.Equal(t, 5, cfg.Batch.DownloadConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Batch.ItemTimeout())
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 1, cfg.Fetch.MaxAttempts)
	assert.Contains(t, cfg.Fetch.UserAgent, "Mozilla/5.0")
	assert.False(t, cfg.Scrape.Headless)
	assert.Equal(t, 15, cfg.Scrape.TimeoutSecs)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Analysis.Model)
	assert.Equal(t, 30, cfg.Analysis.QuotaCalls)
	assert.Equal(t, time.Minute, cfg.Analysis.QuotaWindow())
	assert.Equal(t, "data", cfg.Storage.Dir)
	assert.Equal(t, "harvest.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Classify.Categories)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
batch:
  concurrency: 10
  item_timeout_secs: 60
analysis:
  instruction: "extract the product model"
  quota_calls: 5
  quota_window_secs: 10
classify:
  allowed_extensions: [".pdf"]
  categories:
    - name: manual
      patterns: ["manual", "guide"]
    - name: datasheet
      patterns: ["data\\s*sheet"]
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Batch.Concurrency)
	assert.Equal(t, 60, cfg.Batch.ItemTimeoutSecs)
	assert.Equal(t, "extract the product model", cfg.Analysis.Instruction)
	assert.Equal(t, 5, cfg.Analysis.QuotaCalls)
	assert.Equal(t, 10*time.Second, cfg.Analysis.QuotaWindow())
	assert.Equal(t, []string{".pdf"}, cfg.Classify.AllowedExtensions)
	require.Len(t, cfg.Classify.Categories, 2)
	assert.Equal(t, "manual", cfg.Classify.Categories[0].Name)
	assert.Equal(t, []string{"manual", "guide"}, cfg.Classify.Categories[0].Patterns)
	assert.Equal(t, "datasheet", cfg.Classify.Categories[1].Name)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("HARVEST_BATCH_CONCURRENCY", "3")
	t.Setenv("HARVEST_ANALYSIS_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Batch.Concurrency)
	assert.Equal(t, "sk-test", cfg.Analysis.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "bogus", Format: "json"})
	assert.Error(t, err)
}
