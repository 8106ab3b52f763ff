// Package phonetic recovers supported labels from misheard speech using
// Double Metaphone encoding and Jaro-Winkler similarity.
//
// Speech recognisers routinely split or misspell object names ("lap top",
// "bottel", "key bored"). A [Matcher] is built once for a fixed vocabulary and
// resolves a spoken phrase in two passes:
//
//  1. Phonetic: a label is a candidate when one of its Double Metaphone codes
//     equals a code of the phrase. The candidate with the best Jaro-Winkler
//     score above the phonetic threshold wins.
//  2. Fuzzy: without any phonetic candidate, the label with the best
//     Jaro-Winkler score above the (stricter) fuzzy threshold wins.
//
// Scores are taken over the full phrase, the phrase with spaces removed, and
// every token pair, so a label split across two spoken words still matches.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a label that
// shares a phonetic code with the phrase. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.phoneticThreshold = threshold
		}
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the fallback
// pass. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.fuzzyThreshold = threshold
		}
	}
}

// entry is one vocabulary label with its precomputed phonetic codes.
type entry struct {
	label  string
	tokens []string
	codes  map[string]struct{}
}

// Matcher resolves phrases against a fixed vocabulary. It is read-only after
// [New] and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	vocabulary        []entry
}

// New returns a Matcher for vocabulary. Labels are compared case-insensitively
// and returned in their original spelling.
func New(vocabulary []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, label := range vocabulary {
		tokens := strings.Fields(strings.ToLower(label))
		if len(tokens) == 0 {
			continue
		}
		m.vocabulary = append(m.vocabulary, entry{
			label:  label,
			tokens: tokens,
			codes:  codes(tokens),
		})
	}
	return m
}

// Match returns the vocabulary label closest to phrase. When ok is false,
// label is empty and score is 0.
func (m *Matcher) Match(phrase string) (label string, score float64, ok bool) {
	tokens := strings.Fields(strings.ToLower(phrase))
	if len(tokens) == 0 || len(m.vocabulary) == 0 {
		return "", 0, false
	}
	phraseCodes := codes(tokens)

	var (
		bestPhonetic, bestFuzzy   string
		phoneticScore, fuzzyScore float64
	)
	for _, e := range m.vocabulary {
		s := similarity(tokens, e.tokens)
		if overlaps(phraseCodes, e.codes) {
			if s >= m.phoneticThreshold && s > phoneticScore {
				bestPhonetic, phoneticScore = e.label, s
			}
			continue
		}
		if s >= m.fuzzyThreshold && s > fuzzyScore {
			bestFuzzy, fuzzyScore = e.label, s
		}
	}

	switch {
	case bestPhonetic != "":
		return bestPhonetic, phoneticScore, true
	case bestFuzzy != "":
		return bestFuzzy, fuzzyScore, true
	}
	return "", 0, false
}

// codes returns the union of non-empty Double Metaphone codes of tokens.
func codes(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			out[primary] = struct{}{}
		}
		if secondary != "" {
			out[secondary] = struct{}{}
		}
	}
	return out
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score of the joined phrase, the
// concatenated phrase, and every token pair.
func similarity(phrase, label []string) float64 {
	score := matchr.JaroWinkler(strings.Join(phrase, " "), strings.Join(label, " "), false)

	if len(phrase) > 1 || len(label) > 1 {
		if s := matchr.JaroWinkler(strings.Join(phrase, ""), strings.Join(label, ""), false); s > score {
			score = s
		}
	}

	for _, p := range phrase {
		for _, l := range label {
			if s := matchr.JaroWinkler(p, l, false); s > score {
				score = s
			}
		}
	}
	return score
}
