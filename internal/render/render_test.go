package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralize(t *testing.T) {
	assert.Equal(t, "pill", Pluralize("pill", 1))
	assert.Equal(t, "pill", Pluralize("pill", 0))
	assert.Equal(t, "pills", Pluralize("pill", 2))
	assert.Equal(t, "glasses", Pluralize("glasses", 3))
	// n <= 1 is idempotent
	assert.Equal(t, Pluralize("cat", 1), Pluralize(Pluralize("cat", 1), 1))
	// exactly one "s" is appended
	assert.Equal(t, Pluralize("cat", 5), Pluralize(Pluralize("cat", 5), 5))
}

func TestJoinWithAnd(t *testing.T) {
	tests := []struct {
		name    string
		words   []string
		joiner  string
		article bool
		want    string
	}{
		{"empty", nil, "and", false, ""},
		{"single", []string{"asthma"}, "and", false, "asthma"},
		{"pair", []string{"asthma", "diabetes"}, "and", false, "asthma and diabetes"},
		{"pair or", []string{"asthma", "diabetes"}, "or", false, "asthma or diabetes"},
		{"three", []string{"a", "b", "c"}, "and", false, "a, b, and c"},
		{"four or", []string{"a", "b", "c", "d"}, "or", false, "a, b, c, or d"},
		{"default joiner", []string{"a", "b"}, "", false, "a and b"},
		{"articles", []string{"appendectomy", "tonsillectomy", "stitches"}, "and", true,
			"an appendectomy, a tonsillectomy, and stitches"},
		{"trims", []string{" cough ", "fever"}, "and", false, "cough and fever"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinWithAnd(tt.words, tt.joiner, tt.article))
		})
	}
}

func TestPronounFor(t *testing.T) {
	tests := []struct {
		name    string
		stem    string
		age     int
		unit    string
		gender  string
		subject string
		verb    string
	}{
		{"adult", "have", 45, "year", "male", "I", "have"},
		{"adult am", "am", 30, "years", "female", "I", "am"},
		{"child years", "have", 10, "year", "female", "she", "has"},
		{"eleven is adult", "have", 11, "year", "female", "I", "have"},
		{"infant months", "am", 6, "month", "male", "he", "is"},
		{"newborn days", "do", 3, "days", "female", "she", "does"},
		{"weeks", "feel", 2, "week", "male", "he", "feels"},
		{"had unchanged", "had", 4, "year", "male", "he", "had"},
		{"past tense unchanged", "started", 4, "year", "male", "he", "started"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, v := PronounFor(tt.stem, tt.age, tt.unit, tt.gender)
			assert.Equal(t, tt.subject, s)
			assert.Equal(t, tt.verb, v)
		})
	}
}

func TestSpeaker_Possessive(t *testing.T) {
	assert.Equal(t, "my", Speaker{AgeValue: 40, AgeUnit: "year", Gender: "female"}.Possessive())
	assert.Equal(t, "her", Speaker{AgeValue: 4, AgeUnit: "year", Gender: "female"}.Possessive())
	assert.Equal(t, "his", Speaker{AgeValue: 9, AgeUnit: "month", Gender: "male"}.Possessive())
	assert.Equal(t, "him", Speaker{AgeValue: 9, AgeUnit: "month", Gender: "male"}.Object())
}

func TestYesNo(t *testing.T) {
	assert.Equal(t, "Yes, I do", YesNo("do", true, "I do"))
	assert.Equal(t, "No, never", YesNo("Have", false, "never"))
	assert.Equal(t, "in March", YesNo("when", true, "in March"))
	assert.False(t, IsYesNo(""))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "She has", Capitalize("she has"))
	assert.Equal(t, "", Capitalize(""))
	assert.Equal(t, "Élan makes it better", Capitalize("élan makes it better"))
	assert.Equal(t, "Östrogen", Capitalize("östrogen"))
}

func TestLowerFirst(t *testing.T) {
	assert.Equal(t, "rest helps", LowerFirst("Rest helps"))
	assert.Equal(t, "éclairs", LowerFirst("Éclairs"))
	assert.Equal(t, "", LowerFirst(""))
}

func TestArticle(t *testing.T) {
	assert.Equal(t, "an ", Article("Ultrasound"))
	assert.Equal(t, "an ", Article("Appendectomy"))
	assert.Equal(t, "a ", Article("ßtest"))
	assert.Equal(t, "", Article("stitches"))
}
