// Package source loads the ordered publication record sequence the index is
// built from and appends new records to it. Record order is the document id
// order, so every implementation must return records in insertion order.
package source

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
)

// Source yields the full record sequence.
type Source interface {
	Load(ctx context.Context) ([]ingestion.RawRecord, error)
}

// Appender adds one record at the end of the sequence.
type Appender interface {
	Append(ctx context.Context, rec ingestion.RawRecord) error
}

// Documents loads and canonicalizes all records from src.
func Documents(ctx context.Context, src Source) ([]ingestion.Document, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ingestion.CanonicalizeAll(records), nil
}
