// Package scope tracks what a conversation is currently about: a top-level
// history section, an optional sub-topic inside it, and a stack of the
// specific records the user has drilled into.
package scope

import (
	"fmt"
	"strings"
)

// Value identifies a scope or sub-scope. Scopes and sub-scopes occupy
// disjoint numeric ranges so a single setter can tell them apart.
type Value int

// Top-level scopes
const (
	CCCurrent Value = iota
	CCPrevious
	Medical
	Surgical
	Medications
	Allergies
	Family
	Social
	Substances
	Travel
	Sexual
	Gynecologic
	Birth
)

// Sub-scopes
const (
	AssocSymptoms Value = 15
)

const (
	maxScope    = Birth
	minSubScope = AssocSymptoms
)

var names = map[Value]string{
	CCCurrent:     "cc_current",
	CCPrevious:    "cc_previous",
	Medical:       "medical",
	Surgical:      "surgical",
	Medications:   "medications",
	Allergies:     "allergies",
	Family:        "family",
	Social:        "social",
	Substances:    "substances",
	Travel:        "travel",
	Sexual:        "sexual",
	Gynecologic:   "gynecologic",
	Birth:         "birth",
	AssocSymptoms: "assoc_symptoms",
}

func (v Value) String() string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("scope(%d)", int(v))
}

// IsScope reports whether v lies in the top-level scope range
func (v Value) IsScope() bool { return v >= CCCurrent && v <= maxScope }

// IsSubScope reports whether v lies in the sub-scope range
func (v Value) IsSubScope() bool { return v >= minSubScope }

// Mode selects how an element is written onto the element stack
type Mode int

const (
	// ReplaceTop resets the stack to the single new element
	ReplaceTop Mode = iota
	// ReplaceCurrent overwrites the innermost element
	ReplaceCurrent
	// ReplaceOneLevelUp pops the innermost element and overwrites its parent
	ReplaceOneLevelUp
	// PushNested nests the element under the innermost one
	PushNested
)

// Level selects an entry of the element stack
type Level int

const (
	Bottom Level = iota
	Current
	ParentOfCurrent
)

// State is the persisted form of a Tracker
type State struct {
	Scope    Value    `json:"scope" bson:"scope"`
	SubScope *Value   `json:"sub_scope,omitempty" bson:"sub_scope,omitempty"`
	Elements []string `json:"elements,omitempty" bson:"elements,omitempty"`
}

// String renders the state as scope/sub/elem>elem for logs
func (s State) String() string {
	var b strings.Builder
	b.WriteString(s.Scope.String())
	if s.SubScope != nil {
		b.WriteByte('/')
		b.WriteString(s.SubScope.String())
	}
	if len(s.Elements) > 0 {
		b.WriteByte('/')
		b.WriteString(strings.Join(s.Elements, ">"))
	}
	return b.String()
}

// Tracker is the mutable conversation focus for one turn. It is not safe for
// concurrent use; a conversation processes one turn at a time.
type Tracker struct {
	scope    Value
	subScope *Value
	elements []string
}

// New returns a tracker focused on the current chief complaint
func New() *Tracker {
	return &Tracker{scope: CCCurrent}
}

// FromState restores a tracker from persisted state. A nil state yields New().
func FromState(s *State) *Tracker {
	if s == nil {
		return New()
	}
	t := &Tracker{scope: s.Scope}
	if s.SubScope != nil {
		v := *s.SubScope
		t.subScope = &v
	}
	if len(s.Elements) > 0 {
		t.elements = append([]string(nil), s.Elements...)
	}
	return t
}

// State returns a detached copy of the tracker's triple
func (t *Tracker) State() State {
	s := State{Scope: t.scope}
	if t.subScope != nil {
		v := *t.subScope
		s.SubScope = &v
	}
	if len(t.elements) > 0 {
		s.Elements = append([]string(nil), t.elements...)
	}
	return s
}

// Scope returns the top-level scope
func (t *Tracker) Scope() Value { return t.scope }

// SubScope returns the sub-scope and whether one is set
func (t *Tracker) SubScope() (Value, bool) {
	if t.subScope == nil {
		return 0, false
	}
	return *t.subScope, true
}

// SetScope switches the top-level topic and clears everything below it
func (t *Tracker) SetScope(v Value) error {
	if !v.IsScope() {
		return fmt.Errorf("set scope: %s is not a scope", v)
	}
	t.scope = v
	t.subScope = nil
	t.elements = nil
	return nil
}

// SetSubScope narrows the current scope and clears the element stack
func (t *Tracker) SetSubScope(v Value) error {
	if !v.IsSubScope() {
		return fmt.Errorf("set sub-scope: %s is not a sub-scope", v)
	}
	sv := v
	t.subScope = &sv
	t.elements = nil
	return nil
}

// MustSetScope is SetScope for callers passing a scope constant. It panics
// when v is not a scope.
func (t *Tracker) MustSetScope(v Value) {
	if err := t.SetScope(v); err != nil {
		panic(err)
	}
}

// MustSetSubScope is SetSubScope for callers passing a sub-scope constant
func (t *Tracker) MustSetSubScope(v Value) {
	if err := t.SetSubScope(v); err != nil {
		panic(err)
	}
}

// ClearSubScope drops the sub-scope and the element stack
func (t *Tracker) ClearSubScope() {
	t.subScope = nil
	t.elements = nil
}

// SetElement writes a record identifier onto the element stack
func (t *Tracker) SetElement(value string, mode Mode) {
	if len(t.elements) == 0 {
		t.elements = []string{value}
		return
	}
	last := len(t.elements) - 1
	switch mode {
	case ReplaceCurrent:
		t.elements[last] = value
	case ReplaceOneLevelUp:
		if last >= 1 {
			t.elements = t.elements[:last]
			last--
		}
		t.elements[last] = value
	case PushNested:
		if t.elements[last] != value {
			t.elements = append(t.elements, value)
		}
	default:
		t.elements = []string{value}
	}
}

// Element returns the requested entry of the stack, or "" and false
func (t *Tracker) Element(level Level) (string, bool) {
	n := len(t.elements)
	if n == 0 {
		return "", false
	}
	switch level {
	case Current:
		return t.elements[n-1], true
	case ParentOfCurrent:
		if n < 2 {
			return "", false
		}
		return t.elements[n-2], true
	default:
		return t.elements[0], true
	}
}

// Elements returns a copy of the whole stack, bottom first
func (t *Tracker) Elements() []string {
	return append([]string(nil), t.elements...)
}

// Depth returns the number of stacked elements
func (t *Tracker) Depth() int { return len(t.elements) }

// Is reports whether the tracker is in scope v
func (t *Tracker) Is(v Value) bool { return t.scope == v }

// IsAny reports whether the tracker is in any of the given scopes
func (t *Tracker) IsAny(vs ...Value) bool {
	for _, v := range vs {
		if t.scope == v {
			return true
		}
	}
	return false
}

// Match compares the tracker against whichever parts of q are set. An element
// stack is compared together with the sub-scope when the tracker has one,
// otherwise together with the scope alone.
func (t *Tracker) Match(q Query) bool {
	switch {
	case q.Elements != nil:
		if !t.scopeIs(q.Scope) || !equalFold(q.Elements, t.elements) {
			return false
		}
		if t.subScope != nil {
			return q.SubScope != nil && *q.SubScope == *t.subScope
		}
		return true
	case q.SubScope != nil:
		return t.scopeIs(q.Scope) && t.subScope != nil && *t.subScope == *q.SubScope
	case q.Scope != nil:
		return t.scopeIs(q.Scope)
	}
	return false
}

func (t *Tracker) scopeIs(v *Value) bool {
	return v != nil && *v == t.scope
}

// Query is a partial triple used by Match
type Query struct {
	Scope    *Value
	SubScope *Value
	Elements []string
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
