package render

import "strings"

// Speaker decides who voices the answers. Adult patients answer for
// themselves; for young children a parent answers in the third person.
type Speaker struct {
	AgeValue int
	AgeUnit  string
	Gender   string
}

// Pediatric reports whether the patient is young enough to be spoken for:
// any age given in days, weeks or months, or ten years and under
func (s Speaker) Pediatric() bool {
	switch unit := strings.TrimSuffix(strings.ToLower(s.AgeUnit), "s"); unit {
	case "day", "week", "month":
		return true
	case "year":
		return s.AgeValue <= 10
	}
	return false
}

// Subject returns "I", "he" or "she"
func (s Speaker) Subject() string {
	if !s.Pediatric() {
		return "I"
	}
	if female(s.Gender) {
		return "she"
	}
	return "he"
}

// Possessive returns "my", "his" or "her"
func (s Speaker) Possessive() string {
	if !s.Pediatric() {
		return "my"
	}
	if female(s.Gender) {
		return "her"
	}
	return "his"
}

// Object returns "me", "him" or "her"
func (s Speaker) Object() string {
	if !s.Pediatric() {
		return "me"
	}
	if female(s.Gender) {
		return "her"
	}
	return "him"
}

// Verb conjugates a first-person verb stem for the speaker
func (s Speaker) Verb(stem string) string {
	if !s.Pediatric() {
		return stem
	}
	return thirdPerson(stem)
}

// PronounFor returns the subject pronoun and the verb agreeing with it
func PronounFor(stem string, ageValue int, ageUnit, gender string) (string, string) {
	s := Speaker{AgeValue: ageValue, AgeUnit: ageUnit, Gender: gender}
	return s.Subject(), s.Verb(stem)
}

// Say renders "<subject> <verb>" with the verb conjugated, e.g. "she has"
func (s Speaker) Say(stem string) string {
	return s.Subject() + " " + s.Verb(stem)
}

func thirdPerson(stem string) string {
	switch stem {
	case "am":
		return "is"
	case "have":
		return "has"
	case "do":
		return "does"
	case "had", "was", "did", "quit", "went", "got", "took", "began":
		return stem
	case "can", "could", "will", "would", "should", "must", "may", "might":
		return stem
	case "were":
		return "was"
	case "":
		return ""
	}
	if strings.HasSuffix(stem, "ed") {
		return stem
	}
	return stem + "s"
}

func female(gender string) bool {
	g := strings.ToLower(strings.TrimSpace(gender))
	return g == "female" || g == "f" || g == "woman" || g == "girl"
}
