package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no config file present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Source.TargetReviews)
	assert.Equal(t, 10, cfg.Source.MinReviews)
	assert.Equal(t, 1500*time.Millisecond, cfg.Source.PolitenessDelay())
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout())
	assert.Equal(t, 3, cfg.Source.PageRetries)

	assert.Equal(t, 0.2, cfg.Oracle.Temperature)
	assert.Equal(t, int64(4096), cfg.Oracle.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Oracle.RateLimitCooldown())
	assert.Equal(t, 60*time.Second, cfg.Oracle.AttemptTimeout())
	assert.Equal(t, 3, cfg.Oracle.MaxAttempts)

	assert.Equal(t, 15, cfg.Pipeline.BatchSize)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 2, cfg.Pipeline.MentionFloor)
	assert.Equal(t, 50, cfg.Index.TopN)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
source:
  listing_base_url: https://gateway.internal
  target_reviews: 40
pipeline:
  batch_size: 10
  concurrency: 2
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gateway.internal", cfg.Source.ListingBaseURL)
	assert.Equal(t, 40, cfg.Source.TargetReviews)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2, cfg.Pipeline.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults survive partial files.
	assert.Equal(t, 2, cfg.Pipeline.MentionFloor)
}

func TestLoad_RejectsInvalidBatchSize(t *testing.T) {
	dir := t.TempDir()
	content := "pipeline:\n  batch_size: -1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	chdir(t, dir)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REVIEWS_ORACLE_MODEL", "test-model-x")
	t.Setenv("REVIEWS_SOURCE_TARGET_REVIEWS", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test-model-x", cfg.Oracle.Model)
	assert.Equal(t, 25, cfg.Source.TargetReviews)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nonsense"}))
}
