package source

import (
	"context"
	"maps"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
)

// Memory is an in-process record sequence, used by tests and by callers
// that already hold their corpus.
type Memory struct {
	mu      sync.RWMutex
	records []ingestion.RawRecord
	// Err, when set, is returned by Load.
	Err error
}

func NewMemory(records ...ingestion.RawRecord) *Memory {
	return &Memory{records: records}
}

func (m *Memory) Load(ctx context.Context) ([]ingestion.RawRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]ingestion.RawRecord, len(m.records))
	for i, r := range m.records {
		out[i] = maps.Clone(r)
	}
	return out, nil
}

func (m *Memory) Append(ctx context.Context, rec ingestion.RawRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, maps.Clone(rec))
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
