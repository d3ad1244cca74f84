package index

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
)

// fixture: doc 0 = "trade trade econom", doc 1 = "financ model"
func fixture() *Snapshot {
	s := New()
	s.Index["trade"] = PostingList{{DocID: 0, Frequency: 2}}
	s.Index["econom"] = PostingList{{DocID: 0, Frequency: 1}}
	s.Index["financ"] = PostingList{{DocID: 1, Frequency: 1}}
	s.Index["model"] = PostingList{{DocID: 1, Frequency: 1}}
	s.Lengths[0] = 3
	s.Lengths[1] = 2
	s.Finalize(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	return s
}

func TestFinalize(t *testing.T) {
	s := fixture()
	assert.Equal(t, 2, s.Meta.TotalDocuments)
	assert.InDelta(t, 2.5, s.Meta.AverageDocumentLength, 1e-12)
	assert.InDelta(t, math.Log10(2), s.IDF["trade"], 1e-12)
	require.NoError(t, s.Validate())
}

func TestIDF(t *testing.T) {
	assert.Equal(t, 0.0, IDF(5, 5))
	assert.Equal(t, 0.0, IDF(0, 0))
	assert.InDelta(t, 1.0, IDF(10, 1), 1e-12)
}

func TestValidateDetectsInconsistency(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"total mismatch", func(s *Snapshot) { s.Meta.TotalDocuments = 3 }},
		{"idf drift", func(s *Snapshot) { s.IDF["trade"] += 0.01 }},
		{"missing idf", func(s *Snapshot) { delete(s.IDF, "model") }},
		{"extra idf", func(s *Snapshot) { s.IDF["ghost"] = 1 }},
		{"duplicate posting", func(s *Snapshot) {
			s.Index["model"] = PostingList{{DocID: 1, Frequency: 1}, {DocID: 1, Frequency: 1}}
		}},
		{"posting out of range", func(s *Snapshot) { s.Index["model"] = PostingList{{DocID: 7, Frequency: 1}} }},
		{"empty posting list", func(s *Snapshot) { s.Index["model"] = PostingList{} }},
		{"zero frequency", func(s *Snapshot) { s.Index["model"] = PostingList{{DocID: 1, Frequency: 0}} }},
		{"length disagrees with postings", func(s *Snapshot) { s.Lengths[1] = 9 }},
		{"average drift", func(s *Snapshot) { s.Meta.AverageDocumentLength = 2.4 }},
		{"nil table", func(s *Snapshot) { s.IDF = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := fixture()
			tc.mutate(s)
			assert.ErrorIs(t, s.Validate(), apperrors.ErrInconsistentSnapshot)
		})
	}
}

func TestValidateEmpty(t *testing.T) {
	s := New()
	s.Finalize(time.Now())
	require.NoError(t, s.Validate())
	assert.Equal(t, 0.0, s.Meta.AverageDocumentLength)
}

func TestStatistics(t *testing.T) {
	s := fixture()
	s.Index["shared"] = PostingList{{DocID: 0, Frequency: 1}, {DocID: 1, Frequency: 1}}
	want := Stats{
		TotalDocuments:        2,
		TotalTerms:            5,
		AverageDocumentLength: 2.5,
		AveragePostingsLength: 6.0 / 5.0,
		MaxPostingsLength:     2,
	}
	if diff := cmp.Diff(want, s.Statistics()); diff != "" {
		t.Errorf("Statistics mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Stats{}, New().Statistics())
}

func TestCloneIsolatesAppends(t *testing.T) {
	orig := fixture()
	before := fixture()

	c := orig.Clone()
	c.Index["trade"] = append(c.Index["trade"], Posting{DocID: 2, Frequency: 1})
	c.Index["new"] = PostingList{{DocID: 2, Frequency: 1}}
	c.Lengths[2] = 2
	c.Finalize(time.Now())

	if diff := cmp.Diff(before, orig); diff != "" {
		t.Errorf("original mutated by clone (-want +got):\n%s", diff)
	}
	assert.Len(t, c.Index["trade"], 2)
	assert.Equal(t, 3, c.Meta.TotalDocuments)
}

func TestTopTerms(t *testing.T) {
	s := fixture()
	s.Index["shared"] = PostingList{{DocID: 0, Frequency: 1}, {DocID: 1, Frequency: 1}}
	top := s.Index.TopTerms(2)
	require.Len(t, top, 2)
	assert.Equal(t, "shared", top[0].Term)
	assert.Equal(t, "econom", top[1].Term)
	assert.Len(t, s.Index.Entries(), 5)
}
