package dialog

import (
	"fmt"

	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/render"
	"github.com/ppiankov/patientsim/internal/resolve"
	"github.com/ppiankov/patientsim/internal/scope"
)

func registerHPI(r *Resolver) {
	r.Register(IntentGetModifyingFactors, handleModifyingFactors)
	r.Register(IntentGetPrecipitant, handlePrecipitant)
	r.Register(IntentGetPreviousOccurrence, handlePreviousOccurrence)
	r.Register(IntentGetProgression, handleProgression)
	r.Register(IntentGetSeverity, handleSeverity)
	r.Register(IntentGetAssociatedSymptoms, handleAssociatedSymptoms)
	r.Register(IntentGetDuration, handleDuration)
}

// symptomAnswer locates the symptom the turn is about and renders a field
// of it with describe
func symptomAnswer(c *Context, describe func(s *patient.Symptom, previous bool) string) string {
	loc := resolve.LocateSymptom(c.Turn.Query, c.Turn.Entities, c.Scope, c.Patient)
	switch {
	case loc.Unknown != "":
		return c.answer(false, fmt.Sprintf("%s have any %s", c.dont(), loc.Unknown))
	case loc.Symptom == nil:
		return c.state("This is the first time this has happened")
	}
	return describe(loc.Symptom, loc.Previous)
}

func handleModifyingFactors(c *Context) (string, error) {
	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		better := fmt.Sprintf("%s %s better", render.JoinWithAnd(s.Alleviating, "and", false), makes(s.Alleviating))
		worse := fmt.Sprintf("%s %s worse", render.JoinWithAnd(s.Aggravating, "and", false), makes(s.Aggravating))

		switch {
		case c.keyword(betterKeywords...) && !c.keyword(worseKeywords...):
			if len(s.Alleviating) == 0 {
				return c.answer(false, "nothing seems to make it better")
			}
			return c.answer(true, better)
		case c.keyword(worseKeywords...) && !c.keyword(betterKeywords...):
			if len(s.Aggravating) == 0 {
				return c.answer(false, "nothing seems to make it worse")
			}
			return c.answer(true, worse)
		}

		switch {
		case len(s.Alleviating) == 0 && len(s.Aggravating) == 0:
			return c.answer(false, "nothing seems to make it better or worse")
		case len(s.Aggravating) == 0:
			return c.answer(true, better)
		case len(s.Alleviating) == 0:
			return c.answer(true, worse)
		}
		// only the first sentence carries the yes
		return c.answer(true, better) + " " + c.state(worse)
	}), nil
}

func handlePrecipitant(c *Context) (string, error) {
	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		if s.Precipitant == "" {
			return c.state("Nothing in particular, it just started")
		}
		return c.state(fmt.Sprintf("It started while %s %s", c.say("was"), s.Precipitant))
	}), nil
}

func handlePreviousOccurrence(c *Context) (string, error) {
	episodes := c.Patient.PreviousEpisodes
	if len(episodes) == 0 {
		return c.answer(false, "this is the first time this has happened"), nil
	}
	c.Scope.MustSetScope(scope.CCPrevious)
	n := len(episodes)
	text := c.answer(true, fmt.Sprintf("%s had this %d %s before", c.say("have"), n, render.Pluralize("time", n)))
	if last := episodes[n-1].Date; last != "" {
		text += " " + c.state("The last time was "+last)
	}
	return text, nil
}

func handleProgression(c *Context) (string, error) {
	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		return c.state(orDefault(s.Progression, "It has stayed about the same"))
	}), nil
}

func handleSeverity(c *Context) (string, error) {
	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		if s.Severity == "" {
			return c.state("It's hard to say")
		}
		return c.state("It is " + s.Severity)
	}), nil
}

func handleAssociatedSymptoms(c *Context) (string, error) {
	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		names := s.AssociatedNames()
		if len(names) == 0 {
			return c.answer(false, c.say("have")+" not noticed anything else")
		}
		return c.answer(true, fmt.Sprintf("%s also %s %s", c.speaker().Subject(), c.speaker().Verb("have"), render.JoinWithAnd(names, "and", false)))
	}), nil
}

func handleDuration(c *Context) (string, error) {
	return symptomAnswer(c, func(s *patient.Symptom, previous bool) string {
		if s.Duration == "" {
			return c.state(fmt.Sprintf("%s not sure how long", c.say("am")))
		}
		if previous {
			return c.state("It lasted " + s.Duration)
		}
		return c.state("It has been " + s.Duration)
	}), nil
}

func makes(items []string) string {
	if len(items) > 1 {
		return "make it"
	}
	return "makes it"
}
