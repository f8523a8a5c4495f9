// Package textnorm provides case and diacritic folding for matching Spanish
// free text against keyword tables and catalog fields.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuation is replaced by spaces before matching.
var punctuation = strings.NewReplacer(
	"¿", " ", "?", " ", "¡", " ", "!", " ",
	",", " ", ";", " ", ":", " ", "\"", " ",
	"(", " ", ")", " ", "«", " ", "»", " ",
	"\n", " ", "\t", " ",
)

// Fold lowercases s and strips diacritics ("Público" -> "publico", "mañana" -> "manana").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Normalize folds s, replaces punctuation with spaces and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(punctuation.Replace(Fold(s))), " ")
}

// ContainsFold reports whether needle occurs in haystack ignoring case and diacritics.
func ContainsFold(haystack, needle string) bool {
	n := Fold(strings.TrimSpace(needle))
	if n == "" {
		return false
	}
	return strings.Contains(Fold(haystack), n)
}

// ContainsPhrase reports whether the normalized text contains phrase on word
// boundaries. Both arguments must already be normalized.
func ContainsPhrase(text, phrase string) bool {
	return IndexPhrase(text, phrase) >= 0
}

// IndexPhrase returns the byte offset of phrase in text on word boundaries, or -1.
func IndexPhrase(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	padded := " " + text + " "
	i := strings.Index(padded, " "+phrase+" ")
	if i < 0 {
		return -1
	}
	return i
}

// stopwords are ignored when tokenizing for lexical scoring.
var stopwords = map[string]bool{
	"que": true, "hay": true, "los": true, "las": true, "del": true, "una": true,
	"uno": true, "unos": true, "unas": true, "para": true, "por": true, "con": true,
	"este": true, "esta": true, "estos": true, "estas": true, "algo": true, "algun": true,
	"alguna": true, "donde": true, "cual": true, "cuales": true, "como": true, "quiero": true,
	"busco": true, "recomiendas": true, "recomienda": true, "puedo": true, "ver": true,
	"hacer": true, "mas": true, "muy": true, "sobre": true, "evento": true, "eventos": true,
	"the": true, "and": true, "for": true,
}

// Tokens returns the normalized words of s that are long enough to carry
// meaning. Numbers are kept at any length ("15", "2x1").
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".'/-")
		if f == "" || stopwords[f] {
			continue
		}
		if len([]rune(f)) < 3 && !hasDigit(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
