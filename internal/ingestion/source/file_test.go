package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
)

func TestFileSourceMissingFileIsEmpty(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent.jsonl"))
	recs, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileSourceJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publications.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"Title": "Economics of Trade", "Authors": ["A Smith"], "Year": "2020"},
		{"title": "Finance Models", "year": 2021}
	]`), 0o644))

	docs, err := Documents(context.Background(), NewFileSource(path))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Economics of Trade", docs[0].Title)
	assert.Equal(t, 2020, *docs[0].Year)
	assert.Equal(t, 1, docs[1].ID)
	assert.Equal(t, 2021, *docs[1].Year)
}

func TestFileSourceJSONLinesAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "publications.jsonl")
	src := NewFileSource(path)
	ctx := context.Background()

	require.NoError(t, src.Append(ctx, ingestion.RawRecord{"title": "first"}))
	require.NoError(t, src.Append(ctx, ingestion.RawRecord{"title": "second"}))

	recs, err := src.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "first", recs[0]["title"])
	assert.Equal(t, "second", recs[1]["title"])
}

func TestFileSourceAppendAfterUnterminatedLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publications.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"first"}`), 0o644))
	src := NewFileSource(path)
	ctx := context.Background()

	require.NoError(t, src.Append(ctx, ingestion.RawRecord{"title": "second"}))
	require.NoError(t, src.Append(ctx, ingestion.RawRecord{"title": "third"}))

	recs, err := src.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "first", recs[0]["title"])
	assert.Equal(t, "second", recs[1]["title"])
	assert.Equal(t, "third", recs[2]["title"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"title\":\"first\"}\n{\"title\":\"second\"}\n{\"title\":\"third\"}\n", string(data))
}

func TestFileSourceConcurrentAppends(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "publications.jsonl"))
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, src.Append(ctx, ingestion.RawRecord{"title": "t", "n": i}))
		}(i)
	}
	wg.Wait()
	recs, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 20)
}

func TestFileSourceSkipsBlankLinesAndReportsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publications.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"title\":\"a\"}\n\n{\"title\":\"b\"}\n"), 0o644))
	recs, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	require.NoError(t, os.WriteFile(path, []byte("{\"title\":\"a\"}\n{broken\n"), 0o644))
	_, err = NewFileSource(path).Load(context.Background())
	assert.ErrorContains(t, err, "line 2")
}

func TestFileSourceAppendRequiresJSONLines(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "publications.json"))
	err := src.Append(context.Background(), ingestion.RawRecord{"title": "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMemorySource(t *testing.T) {
	m := NewMemory(ingestion.RawRecord{"title": "a"})
	require.NoError(t, m.Append(context.Background(), ingestion.RawRecord{"title": "b"}))
	recs, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 2, m.Len())
}
