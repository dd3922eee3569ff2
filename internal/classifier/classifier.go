// Package classifier is the boundary to the external language understanding
// service. Every provider returns the same LUIS-shaped prediction.
package classifier

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
)

// ErrUnavailable wraps every failure to obtain a prediction
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier turns raw user text into an intent and entities
type Classifier interface {
	// Name returns the provider name
	Name() string

	// Classify predicts the intent and entities of query
	Classify(ctx context.Context, query string) (*nlu.Prediction, error)
}

// Config holds classifier provider configuration
type Config struct {
	// Provider name: "luis", "openai"
	Provider string

	Endpoint   string
	AppID      string
	APIKey     string
	SpellCheck bool

	// Model is the chat model used by the openai provider
	Model string

	// Intents the openai provider may choose from
	Intents []string

	Timeout time.Duration

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts model.ClassifierConfig to classifier.Config,
// filling the API key from the environment when it is not configured
func ConfigFromModel(m model.ClassifierConfig) Config {
	cfg := Config{
		Provider:   m.Provider,
		Endpoint:   m.Endpoint,
		AppID:      m.AppID,
		APIKey:     m.APIKey,
		SpellCheck: m.SpellCheck,
		Model:      m.Model,
		Timeout:    m.Timeout,
		HTTPProxy:  m.HTTPProxy,
		HTTPSProxy: m.HTTPSProxy,
		NoProxy:    m.NoProxy,
	}
	if cfg.APIKey == "" {
		switch strings.ToLower(cfg.Provider) {
		case "luis":
			cfg.APIKey = os.Getenv("LUIS_SUBSCRIPTION_KEY")
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.AppID == "" {
		cfg.AppID = os.Getenv("LUIS_APP_ID")
	}
	return cfg
}

// finish normalizes a decoded prediction: entities in text order, a top
// intent even when the provider only sent the list, and offsets for entities
// the provider did not place
func finish(p *nlu.Prediction, query string) *nlu.Prediction {
	if p.Query == "" {
		p.Query = query
	}
	locate(p.Entities, p.Query)
	sort.SliceStable(p.Entities, func(i, j int) bool { return p.Entities[i].Start < p.Entities[j].Start })
	sort.SliceStable(p.Intents, func(i, j int) bool { return p.Intents[i].Score > p.Intents[j].Score })
	if p.TopIntent.Name == "" && len(p.Intents) > 0 {
		p.TopIntent = p.Intents[0]
	}
	if len(p.Intents) == 0 && p.TopIntent.Name != "" {
		p.Intents = []nlu.Intent{p.TopIntent}
	}
	return p
}

// locate fills rune offsets for entities that arrived without them
func locate(es nlu.Entities, query string) {
	lower := strings.ToLower(query)
	for i := range es {
		e := &es[i]
		if e.Start != 0 || e.End != 0 || e.Text == "" {
			continue
		}
		at := strings.Index(lower, strings.ToLower(e.Text))
		if at < 0 {
			continue
		}
		e.Start = utf8.RuneCountInString(lower[:at])
		e.End = e.Start + utf8.RuneCountInString(e.Text) - 1
	}
}
