// Package transcript turns a spoken request into a supported object label.
//
// Speech-to-text output arrives as free text ("where is my laptop", "find the
// lap top"). A [Parser] resolves it in two stages:
//
//  1. Exact: the text is split into words and the first word that is a
//     supported label wins.
//  2. Phonetic: when no word matches exactly and a [PhoneticMatcher] is
//     configured, windows of two and then one word are tested at each position
//     in utterance order; the first window the matcher accepts wins.
//
// When neither stage finds a label the request is unsupported. The Parser is
// read-only after construction and safe for concurrent use.
package transcript

import (
	"strings"
	"unicode"

	"github.com/MrWong99/crawlfree/internal/labels"
)

// Method names the stage that produced a [Result].
type Method string

const (
	MethodExact    Method = "exact"
	MethodPhonetic Method = "phonetic"
)

// PhoneticMatcher resolves a phrase to the closest label of a fixed vocabulary.
type PhoneticMatcher interface {
	Match(phrase string) (label string, score float64, ok bool)
}

// Result is a resolved request.
type Result struct {
	// Label is the normalised supported label.
	Label string

	// Heard is the word or words of the utterance that produced Label.
	Heard string

	// Method is the resolving stage.
	Method Method

	// Score is 1 for exact matches and the matcher score otherwise.
	Score float64
}

// maxWindow is the longest word window offered to the phonetic matcher.
const maxWindow = 2

// minFuzzyRunes skips very short filler words ("a", "my") in the phonetic
// stage.
const minFuzzyRunes = 3

// Option configures a [Parser].
type Option func(*Parser)

// WithPhoneticMatcher enables the phonetic stage.
func WithPhoneticMatcher(m PhoneticMatcher) Option {
	return func(p *Parser) { p.phonetic = m }
}

// Parser resolves utterances against a label set.
type Parser struct {
	labels   *labels.Set
	phonetic PhoneticMatcher
}

// NewParser returns a Parser for set.
func NewParser(set *labels.Set, opts ...Option) *Parser {
	p := &Parser{labels: set}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Words lowercases text and splits it on anything that is not a letter or
// digit.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Parse resolves text. ok is false when no supported label was found.
func (p *Parser) Parse(text string) (Result, bool) {
	words := Words(text)

	for _, w := range words {
		if p.labels.Contains(w) {
			return Result{Label: w, Heard: w, Method: MethodExact, Score: 1}, true
		}
	}

	if p.phonetic == nil {
		return Result{}, false
	}

	for i := range words {
		for n := min(maxWindow, len(words)-i); n >= 1; n-- {
			heard := strings.Join(words[i:i+n], " ")
			if n == 1 && len([]rune(heard)) < minFuzzyRunes {
				continue
			}
			label, score, ok := p.phonetic.Match(heard)
			if !ok || !p.labels.Contains(label) {
				continue
			}
			return Result{Label: labels.Normalize(label), Heard: heard, Method: MethodPhonetic, Score: score}, true
		}
	}
	return Result{}, false
}

// Resolve implements the label resolver used by the guidance session.
func (p *Parser) Resolve(text string) (string, bool) {
	r, ok := p.Parse(text)
	return r.Label, ok
}
