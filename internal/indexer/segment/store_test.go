package segment

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
)

func TestFileStoreNotFound(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), CompressionZstd, nil)
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
}

func TestFileStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, CompressionLZ4, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first := sampleSnapshot(20)
	require.NoError(t, s.Save(ctx, first))
	second := sampleSnapshot(40)
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("loaded snapshot mismatch (-want +got):\n%s", diff)
	}
	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreRemovesStaleTemp(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, snapshotFile+".tmp")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))

	_, err := NewFileStore(dir, CompressionZstd, nil)
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreCorruptFileFailsWhole(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, CompressionZstd, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleSnapshot(10)))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), data[:len(data)/2], 0o644))

	snap, err := s.Load(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreLockExcludesSecondWriter(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileStore(dir, CompressionZstd, nil)
	require.NoError(t, err)
	b, err := NewFileStore(dir, CompressionZstd, nil)
	require.NoError(t, err)

	unlock, err := a.TryLock()
	require.NoError(t, err)

	_, err = b.TryLock()
	assert.ErrorIs(t, err, apperrors.ErrBuildInProgress)

	unlock()
	unlockB, err := b.TryLock()
	require.NoError(t, err)
	unlockB()
}

type fakeBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (f *fakeBlobs) GetBytes(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (f *fakeBlobs) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	return nil
}

func TestRedisStore(t *testing.T) {
	blobs := &fakeBlobs{data: map[string][]byte{}}
	s := NewRedisStore(blobs, "pubsearch:snapshot", CompressionZstd, nil)
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)

	orig := sampleSnapshot(15)
	require.NoError(t, s.Save(ctx, orig))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(orig, got); diff != "" {
		t.Errorf("redis round trip mismatch (-want +got):\n%s", diff)
	}

	blobs.data["pubsearch:snapshot"] = []byte("garbage")
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}
