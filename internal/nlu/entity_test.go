package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleEntities() Entities {
	return Entities{
		{Text: "when", Type: TypeQuery, Start: 0, End: 3},
		{Text: "lisinopril", Type: TypeMedication, Start: 18, End: 27},
		{Text: "mexico", Type: "builtin.geography.country", Start: 32, End: 37},
		{Text: "aspirin", Type: TypeMedication, Start: 43, End: 49},
	}
}

func TestEntities_MatchAll(t *testing.T) {
	es := sampleEntities()
	assert.Equal(t, es, es.Match(""))
}

func TestEntities_MatchByValue(t *testing.T) {
	got := sampleEntities().Match("", "aspirin", "when")
	assert.Equal(t, []string{"when", "aspirin"}, got.Texts())
}

func TestEntities_MatchByType(t *testing.T) {
	got := sampleEntities().Match(TypeMedication)
	assert.Equal(t, []string{"lisinopril", "aspirin"}, got.Texts())
}

func TestEntities_MatchTypeAndValue(t *testing.T) {
	es := sampleEntities()
	assert.Len(t, es.Match(TypeMedication, "aspirin"), 1)
	assert.Empty(t, es.Match(TypeQuery, "aspirin"))
}

func TestEntities_MatchGeographyPrefix(t *testing.T) {
	es := sampleEntities()
	got := es.Match(TypeGeography)
	assert.Equal(t, []string{"mexico"}, got.Texts())
	assert.True(t, es.Has(TypeGeography, "Mexico"))
}

func TestEntities_NoMatchIsEmpty(t *testing.T) {
	assert.Empty(t, sampleEntities().Match(TypeSurgery))
	assert.Equal(t, "", sampleEntities().First(TypeSurgery))
}

func TestNextWordAfter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"followed by time", "what happened the last time you had it", true},
		{"followed by episode at end", "tell me about the last episode", true},
		{"duration sense", "how long does it last", false},
		{"different word", "the last one", false},
		{"punctuation between", "the last, time", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runes := []rune(tt.query)
			start := indexOf(runes, "last")
			es := Entities{{Text: "last", Type: TypeTimeQualifier, Start: start, End: start + 3}}
			got := NextWordAfter(tt.query, es, "last", []string{"time", "episode", "instance"}, TypeTimeQualifier)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextWordAfter_TypeMismatch(t *testing.T) {
	q := "the last time"
	es := Entities{{Text: "last", Type: TypeKeyword, Start: 4, End: 7}}
	assert.False(t, NextWordAfter(q, es, "last", []string{"time"}, TypeTimeQualifier))
	assert.True(t, NextWordAfter(q, es, "last", []string{"time"}, ""))
}

func TestPrediction_TopIntents(t *testing.T) {
	p := Prediction{Intents: []Intent{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}}
	assert.Len(t, p.TopIntents(3), 3)
	assert.Equal(t, "a", p.TopIntents(3)[0].Name)
	p.Intents = p.Intents[:2]
	assert.Len(t, p.TopIntents(3), 2)
}

func indexOf(runes []rune, word string) int {
	w := []rune(word)
	for i := 0; i+len(w) <= len(runes); i++ {
		if string(runes[i:i+len(w)]) == word {
			return i
		}
	}
	return -1
}
