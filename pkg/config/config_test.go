package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceFile, cfg.Indexer.Source)
	assert.Equal(t, StoreFile, cfg.Indexer.Store)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "zstd", cfg.Indexer.Compression)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubsearch.yaml")
	yaml := `
indexer:
  dataDir: /var/lib/pubsearch
  documentsPath: /var/lib/pubsearch/publications.jsonl
  updateInterval: 1h
search:
  defaultLimit: 20
  maxResults: 50
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("PS_LOGGING_FORMAT", "text")
	t.Setenv("PS_REDIS_ENABLED", "true")
	t.Setenv("PS_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pubsearch", cfg.Indexer.DataDir)
	assert.Equal(t, time.Hour, cfg.Indexer.UpdateInterval)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// untouched sections keep defaults
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	cfg := Default()
	cfg.Indexer.Store = "s3"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Search.MaxResults = 1
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
