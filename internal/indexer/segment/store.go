package segment

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
)

// Store persists one snapshot as an atomically replaced unit. Load returns
// ErrSnapshotNotFound when nothing has been saved yet.
type Store interface {
	Save(ctx context.Context, snap *index.Snapshot) error
	Load(ctx context.Context) (*index.Snapshot, error)
}

// Locker is implemented by stores that can exclude writers in other
// processes. TryLock fails with ErrBuildInProgress instead of waiting.
type Locker interface {
	TryLock() (unlock func(), err error)
}
