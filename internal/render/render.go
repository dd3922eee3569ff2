// Package render holds the text helpers every reply is assembled with.
package render

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pluralize appends "s" when count > 1 and the word does not already end in "s"
func Pluralize(word string, count int) string {
	if count > 1 && !strings.HasSuffix(word, "s") {
		return word + "s"
	}
	return word
}

// JoinWithAnd joins words into an English list. Two words are joined without
// a comma, three or more get an Oxford comma before the joiner. With article
// set, singular words are prefixed with "a" or "an".
func JoinWithAnd(words []string, joiner string, article bool) string {
	if joiner == "" {
		joiner = "and"
	}
	var b strings.Builder
	n := len(words)
	for i, w := range words {
		w = strings.TrimSpace(w)
		switch {
		case i == n-1 && i != 0:
			if n != 2 {
				b.WriteByte(',')
			}
			b.WriteString(" " + joiner + " ")
		case i != 0:
			b.WriteString(", ")
		}
		if article {
			b.WriteString(Article(w))
		}
		b.WriteString(w)
	}
	return b.String()
}

// Article returns "a ", "an " or "" (plural words) for a word
func Article(word string) string {
	if word == "" || strings.HasSuffix(word, "s") {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(word)
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return "an "
	}
	return "a "
}

// Capitalize upper-cases the first letter of s
func Capitalize(s string) string {
	return mapFirst(s, unicode.ToUpper)
}

// LowerFirst lower-cases the first letter of s
func LowerFirst(s string) string {
	return mapFirst(s, unicode.ToLower)
}

func mapFirst(s string, f func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(f(r)) + s[size:]
}
