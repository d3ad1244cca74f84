// Package index holds the derived structures of one corpus snapshot: the
// term index, the document length table, the IDF table and the corpus
// metadata. A Snapshot is immutable once published.
package index

import (
	"math"
	"sort"
)

// Posting records that a term occurs Frequency times in document DocID.
type Posting struct {
	DocID     int `cbor:"1,keyasint"`
	Frequency int `cbor:"2,keyasint"`
}

// PostingList holds at most one Posting per document, in ascending DocID
// order as produced by the builder.
type PostingList []Posting

// TermIndex maps a normalized term to its postings.
type TermIndex map[string]PostingList

// TermEntry is a term with its postings, used for ordered listings.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// IDF is log10(N/df). It is zero when df is zero or N is not larger.
func IDF(totalDocuments, documentFrequency int) float64 {
	if documentFrequency <= 0 || totalDocuments <= 0 {
		return 0
	}
	return math.Log10(float64(totalDocuments) / float64(documentFrequency))
}

// Entries returns the index as a list sorted by term.
func (ti TermIndex) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(ti))
	for term, postings := range ti {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// TopTerms returns the n terms with the longest posting lists, longest
// first, ties by term.
func (ti TermIndex) TopTerms(n int) []TermEntry {
	entries := ti.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].Postings) > len(entries[j].Postings)
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
