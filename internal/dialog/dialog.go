// Package dialog turns a classified turn into the patient's reply.
//
// Every intent maps to one handler. A handler reads the patient record,
// moves the conversation focus through the scope tracker and returns the
// reply text. When it cannot tell which record the user means it asks back
// and leaves a clarification request for the next turn.
package dialog

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/render"
	"github.com/ppiankov/patientsim/internal/scope"
)

// DefaultReply answers intents nobody handles
const DefaultReply = "Sorry, I didn't understand that."

// ErrNoPatient is returned when a turn reaches the resolver without a case
var ErrNoPatient = errors.New("no patient selected")

// Turn is one classified user message
type Turn struct {
	Query    string
	Intent   nlu.Intent
	Entities nlu.Entities
	// Resumed is set when the turn completes an earlier clarification
	Resumed bool
}

// QueryWord returns the question word of the turn ("do", "when", ...), or ""
func (t *Turn) QueryWord() string {
	return t.Entities.First(nlu.TypeQuery)
}

// ApplyClarification merges a pending clarification into the turn when the
// turn carries an entity of the expected type. The pending request's intent
// replaces the turn's and its entities are placed before the new ones.
func ApplyClarification(pending *nlu.ClarificationRequest, t *Turn) bool {
	if pending == nil || !t.Entities.Has(pending.ExpectedType) {
		return false
	}
	merged := make(nlu.Entities, 0, len(pending.Entities)+len(t.Entities))
	merged = append(merged, pending.Entities...)
	merged = append(merged, t.Entities...)
	t.Intent = pending.Intent
	t.Entities = merged
	t.Resumed = true
	return true
}

// Context is what a handler works with
type Context struct {
	Turn     *Turn
	Scope    *scope.Tracker
	Patient  *patient.Record
	UserName string

	clarification *nlu.ClarificationRequest
}

// Result is the outcome of one dispatched turn
type Result struct {
	Text          string
	Handler       string
	Clarification *nlu.ClarificationRequest
}

// HandlerFunc answers one intent
type HandlerFunc func(c *Context) (string, error)

// Resolver dispatches turns to intent handlers
type Resolver struct {
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	log      *zap.Logger
}

// NewResolver creates a resolver with the full intent catalogue registered
func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		handlers: make(map[string]HandlerFunc),
		fallback: handleNone,
		log:      log,
	}
	registerDirect(r)
	registerRecognizers(r)
	registerSections(r)
	registerCrossElement(r)
	registerHPI(r)
	return r
}

// Register binds a handler to an intent name, replacing any previous one
func (r *Resolver) Register(intent string, h HandlerFunc) {
	r.handlers[intent] = h
}

// Intents returns the registered intent names
func (r *Resolver) Intents() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Resolve runs the handler for the turn's intent. Panics raised while
// assembling the reply are returned as errors.
func (r *Resolver) Resolve(c *Context) (res Result, err error) {
	if c.Patient == nil {
		return Result{}, ErrNoPatient
	}
	if c.Scope == nil {
		c.Scope = scope.New()
	}

	name := c.Turn.Intent.Name
	h, ok := r.handlers[name]
	if !ok {
		h, name = r.fallback, IntentNone
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler %s panicked: %v", name, p)
		}
	}()

	text, err := h(c)
	if err != nil {
		return Result{Handler: name}, fmt.Errorf("handler %s: %w", name, err)
	}
	if strings.TrimSpace(text) == "" {
		text = DefaultReply
	}

	r.log.Debug("resolved turn",
		zap.String("intent", c.Turn.Intent.Name),
		zap.String("handler", name),
		zap.Bool("resumed", c.Turn.Resumed),
		zap.Stringer("scope", c.Scope.State()),
	)
	return Result{Text: text, Handler: name, Clarification: c.clarification}, nil
}

// ask records a clarification for cat and returns the question to send
func (c *Context) ask(cat *patient.Category) string {
	c.clarification = &nlu.ClarificationRequest{
		Intent:       c.Turn.Intent,
		Entities:     append(nlu.Entities(nil), c.Turn.Entities...),
		ExpectedType: cat.EntityType,
	}
	return fmt.Sprintf("Which %s are you referring to?", cat.Noun)
}

func (c *Context) speaker() render.Speaker { return c.Patient.Speaker() }

// say conjugates stem for the patient: "I have", "she has"
func (c *Context) say(stem string) string { return c.speaker().Say(stem) }

// dont renders the negated form: "I don't", "she doesn't"
func (c *Context) dont() string { return c.say("do") + "n't" }

func (c *Context) my() string { return c.speaker().Possessive() }

// answer finishes a sentence, prefixing "Yes,"/"No," when the user asked a
// yes/no question
func (c *Context) answer(positive bool, sentence string) string {
	sentence = sentenceEnd(sentence)
	if render.IsYesNo(c.Turn.QueryWord()) {
		return render.YesNo(c.Turn.QueryWord(), positive, lowerFirst(sentence))
	}
	return render.Capitalize(sentence)
}

// state finishes a plain sentence
func (c *Context) state(sentence string) string {
	return render.Capitalize(sentenceEnd(sentence))
}

// has reports whether the turn mentions an entity of typ (and value)
func (c *Context) has(typ string, values ...string) bool {
	return c.Turn.Entities.Has(typ, values...)
}

// keyword reports whether the turn carries one of the keywords
func (c *Context) keyword(words ...string) bool {
	return c.Turn.Entities.Has(nlu.TypeKeyword, words...)
}

func (c *Context) setScope(v scope.Value) {
	if !c.Scope.Is(v) {
		c.Scope.MustSetScope(v)
	}
}

func sentenceEnd(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '?', '!':
		return s
	}
	return s + "."
}

// lowerFirst lowercases the leading word unless it is "I"
func lowerFirst(s string) string {
	if strings.HasPrefix(s, "I ") || strings.HasPrefix(s, "I'") || s == "" {
		return s
	}
	return render.LowerFirst(s)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
