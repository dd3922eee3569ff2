package classifier

import (
	"context"
	"fmt"

	"github.com/ppiankov/patientsim/internal/nlu"
)

// Scripted answers from a fixed table of predictions keyed by query text.
// Queries missing from the table go to the fallback classifier, when set.
type Scripted struct {
	predictions map[string]*nlu.Prediction
	fallback    Classifier
}

// NewScripted creates a scripted classifier. fallback may be nil.
func NewScripted(predictions map[string]*nlu.Prediction, fallback Classifier) *Scripted {
	table := make(map[string]*nlu.Prediction, len(predictions))
	for q, p := range predictions {
		table[nlu.Normalize(q)] = p
	}
	return &Scripted{predictions: table, fallback: fallback}
}

// Name returns "scripted"
func (s *Scripted) Name() string {
	return "scripted"
}

// Classify returns a copy of the scripted prediction for query
func (s *Scripted) Classify(ctx context.Context, query string) (*nlu.Prediction, error) {
	if p, ok := s.predictions[nlu.Normalize(query)]; ok {
		out := *p
		out.Intents = append([]nlu.Intent(nil), p.Intents...)
		out.Entities = append(nlu.Entities(nil), p.Entities...)
		out.Query = ""
		return finish(&out, query), nil
	}
	if s.fallback != nil {
		return s.fallback.Classify(ctx, query)
	}
	return nil, fmt.Errorf("no scripted prediction for %q: %w", query, ErrUnavailable)
}
