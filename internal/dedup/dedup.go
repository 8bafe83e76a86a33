// Package dedup decides whether a generated question repeats one already asked.
//
// The test is lexical and order-insensitive: both questions are reduced to keyword tokens
// and compared by overlap. Paraphrases that share few literal keywords are not caught;
// that is a known limitation of the approach, not a defect.
package dedup

import (
	"strings"
	"unicode"
)

// DefaultThreshold is the keyword overlap above which two questions count as duplicates.
const DefaultThreshold = 0.6

// fillerPhrases are removed as substrings since CJK text carries no word boundaries.
var fillerPhrases = []string{
	"为什么", "什么", "如何", "怎样", "哪些", "简述", "解释", "说明", "请", "是", "的",
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"what": {}, "which": {}, "who": {}, "why": {}, "how": {}, "when": {}, "where": {},
	"does": {}, "do": {}, "did": {}, "of": {}, "in": {}, "on": {}, "to": {}, "for": {},
	"and": {}, "or": {}, "with": {}, "by": {}, "its": {}, "it": {}, "this": {}, "that": {},
	"please": {}, "explain": {}, "describe": {}, "briefly": {},
}

// Keywords extracts the keyword tokens of text: lower-cased, filler words and
// punctuation stripped, split on whitespace. Repeated tokens are kept.
func Keywords(text string) []string {
	cleaned := strings.ToLower(text)
	for _, p := range fillerPhrases {
		cleaned = strings.ReplaceAll(cleaned, p, " ")
	}

	fields := strings.FieldsFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Overlap returns |a ∩ b| / max(|a|, |b|). Every equal pair counts, so repeated
// tokens raise the overlap. Empty input has no overlap.
func Overlap(a, b []string) float64 {
	n := max(len(a), len(b))
	if n == 0 {
		return 0
	}

	common := 0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				common++
			}
		}
	}
	return float64(common) / float64(n)
}

// Filter flags candidates that overlap too much with questions already used.
type Filter struct {
	threshold float64
}

// New returns a Filter; a non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Filter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Filter{threshold: threshold}
}

// Threshold returns the overlap limit in effect.
func (f *Filter) Threshold() float64 {
	return f.threshold
}

// IsSimilar reports whether candidate overlaps any of used by more than the threshold.
func (f *Filter) IsSimilar(candidate string, used []string) bool {
	if len(used) == 0 {
		return false
	}

	ck := Keywords(candidate)
	for _, u := range used {
		if Overlap(ck, Keywords(u)) > f.threshold {
			return true
		}
	}
	return false
}
