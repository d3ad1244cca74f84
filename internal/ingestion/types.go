// Package ingestion defines the canonical publication Document and the
// adapter that resolves heterogeneous crawler records into it. No other
// package inspects raw field names.
package ingestion

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawRecord is one publication record as decoded from JSON.
type RawRecord map[string]any

// Document is the canonical publication. ID is the record's position in
// the corpus sequence and never changes once assigned.
type Document struct {
	ID       int      `json:"id"`
	Title    string   `json:"title,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Year     *int     `json:"year,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// UntitledTitle is shown in place of an empty title.
const UntitledTitle = "Untitled"

// field pairs a native key with the legacy key the crawler emits.
type field struct {
	native string
	legacy string
}

var (
	fieldTitle    = field{"title", "Title"}
	fieldAuthors  = field{"authors", "Authors"}
	fieldYear     = field{"year", "Year"}
	fieldAbstract = field{"abstract", "Abstract"}
	fieldKeywords = field{"keywords", "Keywords"}
	fieldURL      = field{"url", "Publication Link"}
)

// lookup prefers the native key. A native key holding null still wins and
// reads as absent.
func (r RawRecord) lookup(f field) any {
	if v, ok := r[f.native]; ok {
		return v
	}
	return r[f.legacy]
}

// Canonicalize resolves rec into a Document with the given id.
func Canonicalize(id int, rec RawRecord) Document {
	return Document{
		ID:       id,
		Title:    asString(rec.lookup(fieldTitle)),
		Authors:  asStrings(rec.lookup(fieldAuthors)),
		Year:     asYear(rec.lookup(fieldYear)),
		Abstract: asString(rec.lookup(fieldAbstract)),
		Keywords: asStrings(rec.lookup(fieldKeywords)),
		URL:      asString(rec.lookup(fieldURL)),
	}
}

// CanonicalizeAll assigns ids by position.
func CanonicalizeAll(records []RawRecord) []Document {
	docs := make([]Document, len(records))
	for i, rec := range records {
		docs[i] = Canonicalize(i, rec)
	}
	return docs
}

// WeightedText is the composite the index is built from: title and
// abstract once, every author twice and every keyword three times.
func WeightedText(doc Document) string {
	parts := make([]string, 0, 2+2*len(doc.Authors)+3*len(doc.Keywords))
	if doc.Title != "" {
		parts = append(parts, doc.Title)
	}
	if doc.Abstract != "" {
		parts = append(parts, doc.Abstract)
	}
	for _, a := range doc.Authors {
		parts = append(parts, a, a)
	}
	for _, k := range doc.Keywords {
		parts = append(parts, k, k, k)
	}
	return strings.Join(parts, " ")
}

// DisplayTitle returns the title or UntitledTitle.
func DisplayTitle(doc Document) string {
	if strings.TrimSpace(doc.Title) == "" {
		return UntitledTitle
	}
	return doc.Title
}

// HasAuthor reports whether any author contains part, case-insensitively.
func (d Document) HasAuthor(part string) bool {
	part = strings.ToLower(part)
	for _, a := range d.Authors {
		if strings.Contains(strings.ToLower(a), part) {
			return true
		}
	}
	return false
}

// InYear reports whether the document has exactly this year.
func (d Document) InYear(year int) bool {
	return d.Year != nil && *d.Year == year
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

// asYear accepts integers, integral JSON numbers and decimal strings.
func asYear(v any) *int {
	var (
		y  int
		ok bool
	)
	switch t := v.(type) {
	case int:
		y, ok = t, true
	case int32:
		y, ok = int(t), true
	case int64:
		y, ok = int(t), true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < math.MaxInt32 {
			y, ok = int(t), true
		}
	case json.Number:
		n, err := t.Int64()
		y, ok = int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		y, ok = n, err == nil
	}
	if !ok {
		return nil
	}
	return &y
}
