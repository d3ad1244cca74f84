// Package validator checks publication records arriving from outside the
// crawler (the ingest topic and the records endpoint) before they are
// appended to the corpus.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
)

const maxTitleLength = 1024

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateRecord requires at least one indexable field and bounds the title.
func ValidateRecord(rec ingestion.RawRecord) error {
	errs := make(map[string]string)
	doc := ingestion.Canonicalize(0, rec)

	if utf8.RuneCountInString(doc.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if strings.TrimSpace(ingestion.WeightedText(doc)) == "" {
		errs["record"] = "one of title, abstract, authors or keywords is required"
	}
	for _, key := range []string{"year", "Year"} {
		if v, ok := rec[key]; ok && v != nil && doc.Year == nil {
			errs["year"] = fmt.Sprintf("year %v is not an integer", v)
			break
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
