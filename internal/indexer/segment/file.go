package segment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/metrics"
)

const (
	snapshotFile = "snapshot.spdx"
	lockFile     = "snapshot.lock"
)

// FileStore keeps the snapshot in <dir>/snapshot.spdx. Saves go through a
// temp file, fsync and rename, so readers see either the old or the new
// file, never a mix.
type FileStore struct {
	dir         string
	compression Compression
	lock        *flock.Flock
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewFileStore creates dir if needed and removes temp files left by an
// interrupted save.
func NewFileStore(dir string, c Compression, m *metrics.Metrics) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	s := &FileStore{
		dir:         dir,
		compression: c,
		lock:        flock.New(filepath.Join(dir, lockFile)),
		metrics:     m,
		logger:      slog.Default().With("component", "file-store", "dir", dir),
	}
	if err := s.removeStaleTemps(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path is the snapshot file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, snapshotFile)
}

func (s *FileStore) removeStaleTemps() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading snapshot directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing stale temp file %s: %w", entry.Name(), err)
		}
		s.logger.Warn("removed stale temp file", "file", entry.Name())
	}
	return nil
}

// TryLock takes the cross-process writer lock without blocking.
func (s *FileStore) TryLock() (func(), error) {
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring snapshot lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: snapshot lock held by another process", apperrors.ErrBuildInProgress)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Error("releasing snapshot lock", "error", err)
		}
	}, nil
}

func (s *FileStore) Save(ctx context.Context, snap *index.Snapshot) error {
	data, err := EncodeWith(snap, s.compression)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	finalPath := s.Path()
	tmpPath := finalPath + ".tmp"
	if err := writeSynced(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	s.metrics.SetSnapshotBytes(int64(len(data)))
	s.logger.Info("snapshot saved",
		"terms", len(snap.Index),
		"docs", snap.Meta.TotalDocuments,
		"bytes", len(data),
		"compression", s.compression.String(),
	)
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*index.Snapshot, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.Path(), err)
	}
	s.logger.Info("snapshot loaded",
		"terms", len(snap.Index),
		"docs", snap.Meta.TotalDocuments,
		"bytes", len(data),
	)
	return snap, nil
}
