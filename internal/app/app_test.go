package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/config"
)

func TestOpenFileComponentsBuildsIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Indexer.DataDir = filepath.Join(dir, "index")
	cfg.Indexer.DocumentsPath = filepath.Join(dir, "publications.jsonl")
	cfg.Indexer.Compression = "lz4"

	ctx := context.Background()
	c, err := Open(ctx, cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer c.Close()
	assert.NotNil(t, c.Metrics)
	assert.Nil(t, c.Redis)

	require.NoError(t, c.Source.Append(ctx, ingestion.RawRecord{"title": "Economics of Trade"}))
	state, err := c.Engine().Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Snapshot.Meta.TotalDocuments)

	snap, err := c.Store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Meta.TotalDocuments)
}

func TestOpenRejectsUnknownCompression(t *testing.T) {
	cfg := config.Default()
	cfg.Indexer.DataDir = t.TempDir()
	cfg.Indexer.Compression = "brotli"
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}
