package tokenizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"only whitespace", "  \t\n ", []string{}},
		{"stemming", "running dogs", []string{"run", "dog"}},
		{"lowercase", "Deep LEARNING", []string{"deep", "learn"}},
		{"punctuation becomes boundary", "neural-networks, deep;learning!", []string{"neural", "network", "deep", "learn"}},
		{"digits dropped", "trade 2020 covid19", []string{"trade", "covid"}},
		{"stopwords dropped", "the search of the models", []string{"search", "model"}},
		{"short tokens dropped", "ai ml go cats", []string{"cat"}},
		{"duplicates preserved", "trade trade trade", []string{"trade", "trade", "trade"}},
		{"apostrophe splits contraction", "don't search", []string{"search"}},
		{"only noise", "!!! 1234 -- ab", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.text)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Normalize(%q) mismatch (-want +got):\n%s", tc.text, diff)
			}
		})
	}
}

func TestNormalizeNeverNil(t *testing.T) {
	if got := Normalize(""); got == nil {
		t.Fatal("Normalize returned nil for empty input")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	text := "Economics of Trade: Finance Models for Emerging Markets"
	first := Normalize(text)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Normalize(text)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestNormalizeMinimumLengthIsRunes(t *testing.T) {
	// three runes, six bytes: kept
	got := Normalize("ééé")
	if len(got) != 1 {
		t.Fatalf("expected one term for a three-rune token, got %v", got)
	}
	// two runes, four bytes: dropped
	if got := Normalize("éé"); len(got) != 0 {
		t.Fatalf("expected two-rune token to be dropped, got %v", got)
	}
}

func TestCount(t *testing.T) {
	freqs, total := Count("trade models trade finance trade")
	want := map[string]int{"trade": 3, "model": 1, "financ": 1}
	if diff := cmp.Diff(want, freqs); diff != "" {
		t.Errorf("Count mismatch (-want +got):\n%s", diff)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
}

func TestStopWordsSize(t *testing.T) {
	if len(stopWords) != 179 {
		t.Errorf("stop-word list has %d entries, want 179", len(stopWords))
	}
}

func BenchmarkNormalize(b *testing.B) {
	text := strings.Repeat("Distributed inverted indexes for scholarly publication search, 2019 edition. ", 20)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Normalize(text)
	}
}

func BenchmarkNormalizeVaryingSize(b *testing.B) {
	base := "Snowball stemming of publication abstracts with stop-word removal. "
	for _, n := range []int{1, 10, 100} {
		text := strings.Repeat(base, n)
		b.Run(fmt.Sprintf("repeat_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for range b.N {
				Normalize(text)
			}
		})
	}
}
