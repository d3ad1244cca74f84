package index

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
)

const tolerance = 1e-9

// Metadata describes the corpus a snapshot was built from.
type Metadata struct {
	TotalDocuments        int
	AverageDocumentLength float64
	UpdatedAt             time.Time
}

// Snapshot is one consistent point-in-time set of index structures. The
// four parts are only ever saved, loaded and published together.
type Snapshot struct {
	Index   TermIndex
	Lengths map[int]int
	IDF     map[string]float64
	Meta    Metadata
}

// Stats summarises a snapshot.
type Stats struct {
	TotalDocuments        int     `json:"total_documents"`
	TotalTerms            int     `json:"total_terms"`
	AverageDocumentLength float64 `json:"average_document_length"`
	AveragePostingsLength float64 `json:"average_postings_length"`
	MaxPostingsLength     int     `json:"max_postings_length"`
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		Index:   make(TermIndex),
		Lengths: make(map[int]int),
		IDF:     make(map[string]float64),
	}
}

// AverageLength is the mean of the length table, 0 for an empty table.
func AverageLength(lengths map[int]int) float64 {
	if len(lengths) == 0 {
		return 0
	}
	var sum int
	for _, l := range lengths {
		sum += l
	}
	return float64(sum) / float64(len(lengths))
}

// Finalize recomputes the metadata and the whole IDF table from the
// current postings and length table.
func (s *Snapshot) Finalize(now time.Time) {
	n := len(s.Lengths)
	s.Meta.TotalDocuments = n
	s.Meta.AverageDocumentLength = AverageLength(s.Lengths)
	s.Meta.UpdatedAt = now.UTC()
	s.IDF = make(map[string]float64, len(s.Index))
	for term, postings := range s.Index {
		s.IDF[term] = IDF(n, len(postings))
	}
}

// Clone returns a copy that can be extended without touching s. Posting
// lists share their backing arrays with s but are clipped, so an append on
// the clone always reallocates.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Index:   make(TermIndex, len(s.Index)),
		Lengths: maps.Clone(s.Lengths),
		IDF:     maps.Clone(s.IDF),
		Meta:    s.Meta,
	}
	for term, postings := range s.Index {
		c.Index[term] = slices.Clip(postings)
	}
	if c.Lengths == nil {
		c.Lengths = make(map[int]int)
	}
	if c.IDF == nil {
		c.IDF = make(map[string]float64)
	}
	return c
}

// Statistics reports corpus and postings figures.
func (s *Snapshot) Statistics() Stats {
	st := Stats{
		TotalDocuments:        s.Meta.TotalDocuments,
		TotalTerms:            len(s.Index),
		AverageDocumentLength: s.Meta.AverageDocumentLength,
	}
	if len(s.Index) == 0 {
		return st
	}
	var total int
	for _, postings := range s.Index {
		total += len(postings)
		st.MaxPostingsLength = max(st.MaxPostingsLength, len(postings))
	}
	st.AveragePostingsLength = float64(total) / float64(len(s.Index))
	return st
}

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInconsistentSnapshot, fmt.Sprintf(format, args...))
}

// Validate checks that the four structures agree with each other. Every
// violation wraps ErrInconsistentSnapshot.
func (s *Snapshot) Validate() error {
	if s == nil || s.Index == nil || s.Lengths == nil || s.IDF == nil {
		return inconsistent("missing structure")
	}
	n := s.Meta.TotalDocuments
	if n != len(s.Lengths) {
		return inconsistent("total documents %d but %d lengths", n, len(s.Lengths))
	}
	for id, l := range s.Lengths {
		if id < 0 || id >= n {
			return inconsistent("length entry for document %d outside 0..%d", id, n-1)
		}
		if l < 0 {
			return inconsistent("negative length %d for document %d", l, id)
		}
	}

	tokens := make(map[int]int, n)
	for term, postings := range s.Index {
		if len(postings) == 0 {
			return inconsistent("term %q has no postings", term)
		}
		seen := make(map[int]struct{}, len(postings))
		for _, p := range postings {
			if p.DocID < 0 || p.DocID >= n {
				return inconsistent("term %q posts unknown document %d", term, p.DocID)
			}
			if p.Frequency <= 0 {
				return inconsistent("term %q has frequency %d for document %d", term, p.Frequency, p.DocID)
			}
			if _, dup := seen[p.DocID]; dup {
				return inconsistent("term %q posts document %d twice", term, p.DocID)
			}
			seen[p.DocID] = struct{}{}
			tokens[p.DocID] += p.Frequency
		}
		idf, ok := s.IDF[term]
		if !ok {
			return inconsistent("term %q has no idf", term)
		}
		if want := IDF(n, len(postings)); math.Abs(idf-want) > tolerance {
			return inconsistent("term %q idf %g, want %g", term, idf, want)
		}
	}
	if len(s.IDF) != len(s.Index) {
		return inconsistent("idf table has %d terms, index has %d", len(s.IDF), len(s.Index))
	}
	for id, l := range s.Lengths {
		if tokens[id] != l {
			return inconsistent("document %d length %d but postings sum to %d", id, l, tokens[id])
		}
	}
	if want := AverageLength(s.Lengths); math.Abs(s.Meta.AverageDocumentLength-want) > tolerance*max(1, want) {
		return inconsistent("average length %g, want %g", s.Meta.AverageDocumentLength, want)
	}
	return nil
}
