package executor

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer/index"
)

// CorpusStats describes the published corpus beyond the index shape.
type CorpusStats struct {
	index.Stats
	UniqueAuthors       int  `json:"unique_authors"`
	DocumentsWithYear   int  `json:"documents_with_year"`
	EarliestYear        *int `json:"earliest_year"`
	LatestYear          *int `json:"latest_year"`
	BusiestYear         *int `json:"busiest_year"`
	BusiestYearDocCount int  `json:"busiest_year_documents"`
}

// Corpus summarises the published documents. Authors are counted once per
// case-folded, trimmed name. The busiest year is the one with the most
// documents, the earliest on ties.
func (e *Executor) Corpus() (CorpusStats, error) {
	st, err := e.current()
	if err != nil {
		return CorpusStats{}, err
	}
	out := CorpusStats{Stats: st.snap.Statistics()}
	authors := make(map[string]struct{})
	perYear := make(map[int]int)
	for _, doc := range st.docs {
		for _, a := range doc.Authors {
			if name := strings.ToLower(strings.TrimSpace(a)); name != "" {
				authors[name] = struct{}{}
			}
		}
		if doc.Year == nil {
			continue
		}
		y := *doc.Year
		out.DocumentsWithYear++
		perYear[y]++
		if out.EarliestYear == nil || y < *out.EarliestYear {
			out.EarliestYear = &y
		}
		if out.LatestYear == nil || y > *out.LatestYear {
			out.LatestYear = &y
		}
	}
	out.UniqueAuthors = len(authors)
	for y, n := range perYear {
		if n > out.BusiestYearDocCount || (n == out.BusiestYearDocCount && y < *out.BusiestYear) {
			year := y
			out.BusiestYear = &year
			out.BusiestYearDocCount = n
		}
	}
	return out, nil
}
