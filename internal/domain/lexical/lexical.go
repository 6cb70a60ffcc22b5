// Package lexical scores textual evidence that a transcript discusses an
// opportunity. Matching is plain substring and token comparison; no stemming,
// stop-word lists or tokenization beyond whitespace.
package lexical

import (
	"strings"
	"unicode/utf8"

	"github.com/okian/oppsuggest/internal/domain/model"
)

// minSignificantLen is the rune count a word must exceed to count as evidence.
const minSignificantLen = 3

// Words lower-cases s and splits it on whitespace.
func Words(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// SignificantWords returns the lower-cased words of s longer than three characters.
func SignificantWords(s string) []string {
	var out []string
	for _, w := range Words(s) {
		if utf8.RuneCountInString(w) > minSignificantLen {
			out = append(out, w)
		}
	}
	return out
}

// Mentions reports whether any significant word of name appears as a
// substring of the already lower-cased transcript. Partial-word hits count:
// "cart" matches "cartridge".
func Mentions(name, lowerTranscript string) bool {
	for _, w := range SignificantWords(name) {
		if strings.Contains(lowerTranscript, w) {
			return true
		}
	}
	return false
}

// ProductMatch returns the fraction of line items whose product name is
// mentioned in transcript. An empty list scores 0. Items with an empty
// product name count toward the total but never match.
func ProductMatch(items []model.LineItem, transcript string) float64 {
	if len(items) == 0 {
		return 0
	}
	lower := strings.ToLower(transcript)
	matched := 0
	for _, it := range items {
		if Mentions(it.ProductName, lower) {
			matched++
		}
	}
	return float64(matched) / float64(len(items))
}

// NameMatch returns the fraction of distinct words in name that also appear
// as whole words in transcript. A name with no words scores 0.
func NameMatch(name, transcript string) float64 {
	nameSet := wordSet(name)
	if len(nameSet) == 0 {
		return 0
	}
	transcriptSet := wordSet(transcript)
	hits := 0
	for w := range nameSet {
		if _, ok := transcriptSet[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(nameSet))
}

func wordSet(s string) map[string]struct{} {
	words := Words(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
