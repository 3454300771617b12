// Package tokenizer provides text tokenisation for the search engine.
// A token is a lower-cased run of word characters; interior hyphens and
// apostrophes that join two runs are kept ("first-class", "what's"), every
// other punctuation character separates tokens and is dropped.
package tokenizer

import (
	"iter"
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+(?:[-'][\p{L}\p{N}_]+)*`)

// Tokens returns a lazy sequence over the tokens of text. The sequence can
// be ranged over any number of times; each pass re-scans the text.
func Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text
		for {
			loc := wordPattern.FindStringIndex(rest)
			if loc == nil {
				return
			}
			if !yield(strings.ToLower(rest[loc[0]:loc[1]])) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}

// Tokenize collects Tokens(text) into a slice.
func Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/6)
	for tok := range Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Options tunes an Analyzer. The zero value tokenises exactly like Tokenize.
type Options struct {
	// Stem applies the snowball English stemmer to every token.
	Stem bool
}

// Analyzer is the tokenizer used on both the indexing and the query side.
// Index and queries must share one Analyzer so their terms line up.
type Analyzer struct {
	opts Options
}

// NewAnalyzer creates an Analyzer with the given options.
func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// Tokens is the Analyzer counterpart of the package-level Tokens.
func (a *Analyzer) Tokens(text string) iter.Seq[string] {
	if a == nil || !a.opts.Stem {
		return Tokens(text)
	}
	return func(yield func(string) bool) {
		for tok := range Tokens(text) {
			if !yield(stem(tok)) {
				return
			}
		}
	}
}

// Tokenize is the Analyzer counterpart of the package-level Tokenize.
func (a *Analyzer) Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/6)
	for tok := range a.Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// stem leaves hyphenated and contracted tokens alone; the snowball stemmer
// only understands plain words.
func stem(word string) string {
	if strings.ContainsAny(word, "-'") {
		return word
	}
	stemmed := english.Stem(word, false)
	if stemmed == "" {
		return word
	}
	return stemmed
}
