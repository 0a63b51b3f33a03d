// Package tokenizer splits a log line into the word tokens the info model
// counts frequencies over.
package tokenizer

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// wordDotRe additionally keeps interior dots, so dotted identifiers like
// "com.example.service" are captured as one compound token for SplitDot to
// break apart, rather than being cut into pieces by the plain word regex.
var wordDotRe = regexp.MustCompile(`[A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*`)

// camelBoundary matches the point inside an identifier where a lowercase (or
// digit) run gives way to an uppercase letter, e.g. the gap in "fooBar".
var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// Options controls the optional augmentations beyond the base word-extraction
// the original scoring engine performed.
type Options struct {
	IncludeBigrams bool
	SplitCamel     bool
	SplitDot       bool
	MaxPerLine     int
}

// Tokenize extracts lowercase word tokens from text in order of first
// appearance, de-duplicating repeats. With SplitCamel/SplitDot set, compound
// identifiers are additionally broken into their parts (the parts are
// appended, the original compound token is kept too). With IncludeBigrams
// set, adjacent-token bigrams joined by "__" are appended after all unigram
// tokens. If MaxPerLine is positive and the result would exceed it, the
// result is truncated and truncated reports true.
func Tokenize(text string, opts Options) (tokens []string, truncated bool) {
	re := wordRe
	if opts.SplitDot {
		re = wordDotRe
	}
	raw := re.FindAllString(text, -1)
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))

	add := func(tok string) {
		tok = strings.ToLower(tok)
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, tok := range raw {
		add(tok)
		if opts.SplitCamel {
			for _, part := range splitCamel(tok) {
				add(part)
			}
		}
		if opts.SplitDot {
			for _, part := range strings.Split(tok, ".") {
				add(part)
			}
		}
	}

	if opts.IncludeBigrams {
		base := append([]string(nil), out...)
		for i := 0; i < len(base)-1; i++ {
			bigram := base[i] + "__" + base[i+1]
			add(bigram)
		}
	}

	if opts.MaxPerLine > 0 && len(out) > opts.MaxPerLine {
		out = out[:opts.MaxPerLine]
		truncated = true
	}

	return out, truncated
}

// splitCamel breaks an identifier on camelCase boundaries and "_"/"."
// separators, e.g. "userId_fooBar" -> ["user", "Id", "foo", "Bar"]. Case is
// kept; Tokenize lowercases the parts.
func splitCamel(tok string) []string {
	spaced := camelBoundary.ReplaceAllString(tok, "$1 $2")
	fields := strings.FieldsFunc(spaced, func(r rune) bool {
		return r == '_' || r == '.' || r == ' '
	})
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return parts
}
