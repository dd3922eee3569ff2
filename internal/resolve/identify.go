// Package resolve works out which record of a patient's history a turn is
// about, and moves the conversation focus there.
package resolve

import (
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/scope"
)

// Identify picks the instance of a repeatable section the turn refers to.
//
// A section with a single instance needs no disambiguation and leaves the
// tracker alone. Otherwise the turn's entities of the section's type name
// the candidate (the last one on a resumed clarification, the first one
// otherwise) and, with none present, the element already in focus is used.
// On success the tracker's element is replaced with the instance's
// identifier. A nil result means the caller has to ask which one.
func Identify(cat *patient.Category, es nlu.Entities, resumed bool, tr *scope.Tracker, r *patient.Record) patient.Instance {
	insts := cat.Instances(r)
	switch len(insts) {
	case 0:
		return nil
	case 1:
		return insts[0]
	}

	found := es.Match(cat.EntityType)
	if len(found) == 0 {
		if !tr.Is(cat.Scope) {
			return nil
		}
		el, ok := tr.Element(scope.Current)
		if !ok {
			return nil
		}
		inst, ok := cat.FindByElement(r, el)
		if !ok {
			return nil
		}
		return inst
	}

	candidate := found[0].Text
	if resumed {
		candidate = found[len(found)-1].Text
	}

	inst, ok := cat.Disambiguate(r, candidate)
	if !ok {
		return nil
	}

	if !tr.Is(cat.Scope) {
		tr.MustSetScope(cat.Scope)
	}
	element := inst.Canonical()
	if cat.KeywordElement {
		element = nlu.Normalize(candidate)
	}
	tr.SetElement(element, scope.ReplaceTop)
	return inst
}
