package ingestion

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestCanonicalizeKeyStyles(t *testing.T) {
	cases := []struct {
		name string
		rec  RawRecord
		want Document
	}{
		{
			name: "native keys",
			rec: RawRecord{
				"title": "Economics of Trade", "authors": []any{"A Smith"}, "year": float64(2020),
				"abstract": "abs", "keywords": []any{"trade"}, "url": "https://x/1",
			},
			want: Document{ID: 3, Title: "Economics of Trade", Authors: []string{"A Smith"}, Year: intp(2020),
				Abstract: "abs", Keywords: []string{"trade"}, URL: "https://x/1"},
		},
		{
			name: "legacy crawler keys with string year",
			rec: RawRecord{
				"Title": "Finance Models", "Authors": []any{"B Jones", "C Wu"}, "Year": "2021",
				"Publication Link": "https://x/2",
			},
			want: Document{ID: 3, Title: "Finance Models", Authors: []string{"B Jones", "C Wu"}, Year: intp(2021), URL: "https://x/2"},
		},
		{
			name: "native preferred over legacy",
			rec:  RawRecord{"title": "new", "Title": "old", "year": 2001, "Year": "1999"},
			want: Document{ID: 3, Title: "new", Year: intp(2001)},
		},
		{
			name: "native null still wins",
			rec:  RawRecord{"title": nil, "Title": "old", "year": nil, "Year": 1999},
			want: Document{ID: 3},
		},
		{
			name: "single author string",
			rec:  RawRecord{"authors": "Solo Author"},
			want: Document{ID: 3, Authors: []string{"Solo Author"}},
		},
		{
			name: "unparseable year is absent",
			rec:  RawRecord{"year": "circa 1990", "title": "Old"},
			want: Document{ID: 3, Title: "Old"},
		},
		{
			name: "fractional year is absent",
			rec:  RawRecord{"year": 2020.5},
			want: Document{ID: 3},
		},
		{
			name: "non-string list entries skipped",
			rec:  RawRecord{"keywords": []any{"ir", 7, nil, "bm25"}},
			want: Document{ID: 3, Keywords: []string{"ir", "bm25"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Canonicalize(3, tc.rec)); diff != "" {
				t.Errorf("Canonicalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCanonicalizeJSONNumber(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"year": 2019}`))
	dec.UseNumber()
	var rec RawRecord
	require.NoError(t, dec.Decode(&rec))
	doc := Canonicalize(0, rec)
	require.NotNil(t, doc.Year)
	assert.Equal(t, 2019, *doc.Year)
}

func TestCanonicalizeAllAssignsPositions(t *testing.T) {
	docs := CanonicalizeAll([]RawRecord{{"title": "a"}, {"title": "b"}, {}})
	require.Len(t, docs, 3)
	for i, d := range docs {
		assert.Equal(t, i, d.ID)
	}
}

func TestWeightedText(t *testing.T) {
	doc := Document{Title: "T", Abstract: "Abs", Authors: []string{"A1", "A2"}, Keywords: []string{"k"}}
	assert.Equal(t, "T Abs A1 A1 A2 A2 k k k", WeightedText(doc))

	assert.Equal(t, "", WeightedText(Document{}))
	assert.Equal(t, "x x x", WeightedText(Document{Keywords: []string{"x"}}))
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Untitled", DisplayTitle(Document{}))
	assert.Equal(t, "Untitled", DisplayTitle(Document{Title: "  "}))
	assert.Equal(t, "Real", DisplayTitle(Document{Title: "Real"}))
}

func TestHasAuthor(t *testing.T) {
	doc := Document{Authors: []string{"John Smith", "Ann Smithson"}}
	assert.True(t, doc.HasAuthor("smith"))
	assert.True(t, doc.HasAuthor("SMITHSON"))
	assert.False(t, doc.HasAuthor("smyth"))
	assert.False(t, Document{Authors: []string{"Smit"}}.HasAuthor("smith"))
}

func TestInYear(t *testing.T) {
	assert.True(t, Document{Year: intp(2021)}.InYear(2021))
	assert.False(t, Document{Year: intp(2020)}.InYear(2021))
	assert.False(t, Document{}.InYear(0))
}
