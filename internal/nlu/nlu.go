package nlu

import "strings"

// Intent is the classifier's guess at the purpose of a turn
type Intent struct {
	Name  string  `json:"intent" bson:"intent"`
	Score float64 `json:"score" bson:"score"`
}

// Entity is a labeled span of the turn text. Start and End are rune offsets,
// End is inclusive (the classifier reports endIndex that way).
type Entity struct {
	Text  string  `json:"entity" bson:"entity"`
	Type  string  `json:"type" bson:"type"`
	Start int     `json:"startIndex" bson:"start_index"`
	End   int     `json:"endIndex" bson:"end_index"`
	Score float64 `json:"score,omitempty" bson:"score,omitempty"`
}

// Prediction is one classifier response for a query
type Prediction struct {
	Query        string   `json:"query"`
	AlteredQuery string   `json:"alteredQuery,omitempty"`
	TopIntent    Intent   `json:"topScoringIntent"`
	Intents      []Intent `json:"intents"`
	Entities     Entities `json:"entities"`
}

// TopIntents returns at most n intents in classifier order
func (p *Prediction) TopIntents(n int) []Intent {
	if len(p.Intents) <= n {
		return append([]Intent(nil), p.Intents...)
	}
	return append([]Intent(nil), p.Intents[:n]...)
}

// ClarificationRequest is written when a handler needs one more turn to pick
// between repeated records. It is consumed at most once.
type ClarificationRequest struct {
	Intent       Intent   `json:"intent" bson:"intent"`
	Entities     Entities `json:"entities" bson:"entities"`
	ExpectedType string   `json:"expected_type" bson:"expected_type"`
}

// Entity types produced by the classifier model
const (
	TypeQuery         = "query"
	TypeSymptom       = "symptom"
	TypeDisease       = "disease"
	TypeSurgery       = "surgery"
	TypeMedication    = "medication"
	TypeAllergy       = "allergy"
	TypeRelationship  = "relationship"
	TypeSubstance     = "substance"
	TypeGeography     = "builtin.geography"
	TypeTimeQualifier = "timeQualifier"
	TypeKeyword       = "keyword"
	TypePreposition   = "preposition"
)

// Normalize lowercases and trims entity text for comparisons
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
