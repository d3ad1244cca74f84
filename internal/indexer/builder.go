package indexer

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
)

// Build indexes docs from scratch. Document ids are positions in docs. An
// empty corpus is a valid build with an empty vocabulary.
func Build(ctx context.Context, docs []ingestion.Document) (*index.Snapshot, error) {
	snap := index.New()
	if err := addDocuments(ctx, snap, docs, 0); err != nil {
		return nil, err
	}
	snap.Finalize(time.Now())
	return snap, nil
}

// Update appends docs[prev.TotalDocuments:] to a copy of prev. When there
// is nothing new it returns prev itself. All new lengths are merged before
// the average length and every IDF value are recomputed once, so an update
// converges to the same structures as a rebuild over the same corpus.
// prev is never modified.
func Update(ctx context.Context, docs []ingestion.Document, prev *index.Snapshot) (*index.Snapshot, error) {
	if prev == nil {
		return Build(ctx, docs)
	}
	start := prev.Meta.TotalDocuments
	if len(docs) <= start {
		return prev, nil
	}
	next := prev.Clone()
	if err := addDocuments(ctx, next, docs[start:], start); err != nil {
		return nil, err
	}
	next.Finalize(time.Now())
	return next, nil
}

// addDocuments records postings and lengths for docs, numbering them from
// firstID. Cancellation is checked between documents.
func addDocuments(ctx context.Context, snap *index.Snapshot, docs []ingestion.Document, firstID int) error {
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := firstID + i
		freqs, length := tokenizer.Count(ingestion.WeightedText(doc))
		for term, freq := range freqs {
			snap.Index[term] = append(snap.Index[term], index.Posting{DocID: id, Frequency: freq})
		}
		snap.Lengths[id] = length
	}
	return nil
}
