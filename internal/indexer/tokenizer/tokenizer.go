// Package tokenizer turns raw publication text into the index's term
// sequence. It lower-cases input, blanks out punctuation and digit runs,
// splits on whitespace, drops English stop-words and tokens of two runes or
// fewer, and reduces each survivor with the Snowball English stemmer.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

// minTermLength is exclusive: tokens must be longer than this many runes.
const minTermLength = 2

// Normalize returns the stemmed terms of text in order, duplicates kept.
// It never fails; empty input yields an empty slice.
func Normalize(text string) []string {
	words := strings.Fields(strings.Map(blank, strings.ToLower(text)))
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) <= minTermLength {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		terms = append(terms, english.Stem(word, true))
	}
	return terms
}

// Count returns term frequencies for text along with the total number of
// terms, which is the document length used by BM25.
func Count(text string) (map[string]int, int) {
	terms := Normalize(text)
	freqs := make(map[string]int, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	return freqs, len(terms)
}

// blank keeps word runes and whitespace and turns everything else into a
// space. Decimal digits are blanked too, so "covid19" indexes as "covid"
// and years never become terms. Other numeric runes such as superscripts
// count as word characters.
func blank(r rune) rune {
	switch {
	case unicode.IsSpace(r):
		return r
	case unicode.Is(unicode.Nd, r):
		return ' '
	case r == '_', unicode.IsLetter(r), unicode.IsMark(r), unicode.IsNumber(r):
		return r
	default:
		return ' '
	}
}
