package nlu

import (
	"strings"
	"unicode"
)

// Entities is the ordered entity list of a turn (order = position in text)
type Entities []Entity

// Is reports whether the entity satisfies a type and/or value filter.
// An empty type matches any type; empty values match any text.
func (e Entity) Is(typ string, values ...string) bool {
	switch {
	case typ == "":
	case typ == TypeGeography:
		// sub-typed geography tags (builtin.geography.city, ...) share the prefix
		if !strings.HasPrefix(e.Type, TypeGeography) {
			return false
		}
	case e.Type != typ:
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if strings.EqualFold(e.Text, v) {
			return true
		}
	}
	return false
}

// Match returns the entities matching the filter, in original order
func (es Entities) Match(typ string, values ...string) Entities {
	var out Entities
	for _, e := range es {
		if e.Is(typ, values...) {
			out = append(out, e)
		}
	}
	return out
}

// Texts returns the normalized text of every entity
func (es Entities) Texts() []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, Normalize(e.Text))
	}
	return out
}

// Has reports whether at least one entity matches the filter
func (es Entities) Has(typ string, values ...string) bool {
	for _, e := range es {
		if e.Is(typ, values...) {
			return true
		}
	}
	return false
}

// First returns the normalized text of the first matching entity, or ""
func (es Entities) First(typ string, values ...string) string {
	for _, e := range es {
		if e.Is(typ, values...) {
			return Normalize(e.Text)
		}
	}
	return ""
}

// NextWordAfter reports whether the alphabetic word that follows an entity
// with the given text (and type, if set) is one of candidates. Used to tell
// "last time" apart from "how long does it last".
func NextWordAfter(query string, es Entities, entityText string, candidates []string, typ string) bool {
	runes := []rune(query)
	for _, e := range es.Match(typ, entityText) {
		if e.End+1 >= len(runes) || e.End < 0 {
			continue
		}
		word := nextWord(runes[e.End+1:])
		if word == "" {
			continue
		}
		for _, c := range candidates {
			if strings.EqualFold(word, c) {
				return true
			}
		}
	}
	return false
}

// nextWord skips leading non-letters and returns the following run of letters
func nextWord(runes []rune) string {
	var b strings.Builder
	for _, r := range runes {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
