// Package ranker scores documents against a normalized query with Okapi
// BM25 over one index snapshot.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Rank accumulates the BM25 contribution of every query term found in the
// snapshot. Repeated query terms contribute once per occurrence. The result
// is ordered by score descending, then by ascending DocID. limit <= 0 keeps
// every scored document.
func Rank(snap *index.Snapshot, terms []string, limit int) []ScoredDoc {
	avg := snap.Meta.AverageDocumentLength
	scores := make(map[int]float64)
	for _, term := range terms {
		postings, ok := snap.Index[term]
		if !ok {
			continue
		}
		idf := snap.IDF[term]
		for _, posting := range postings {
			docLength, ok := snap.Lengths[posting.DocID]
			length := float64(docLength)
			if !ok {
				length = avg
			}
			scores[posting.DocID] += idf * computeTFNorm(float64(posting.Frequency), length, avg)
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// computeTFNorm is the saturated term frequency. An empty corpus average
// drops the length ratio instead of dividing by zero.
func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	var lengthRatio float64
	if avgDocLength != 0 {
		lengthRatio = docLength / avgDocLength
	}
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
