package dialog

import (
	"fmt"
	"strings"

	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/render"
	"github.com/ppiankov/patientsim/internal/resolve"
	"github.com/ppiankov/patientsim/internal/scope"
)

var papSmearNames = []string{"pap smear", "pap smears", "pap test", "pap", "cervical screening"}

// recognizeDisease is shared with GetDisease questions that name a condition
var recognizeDisease = recognizer(patient.CatDisease, handleDiseases,
	func(c *Context, inst patient.Instance) string {
		d := inst.(*patient.Diagnosis)
		text := c.answer(true, fmt.Sprintf("%s %s", c.say("have"), d.Name))
		if d.Date != "" {
			text += " " + c.state(fmt.Sprintf("%s diagnosed in %s", c.say("was"), d.Date))
		}
		return text
	},
	func(c *Context, name string) string {
		return c.answer(false, fmt.Sprintf("%s never been diagnosed with %s", c.say("have"), name))
	})

func registerRecognizers(r *Resolver) {
	r.Register(IntentRecognizerDisease, recognizeDisease)
	r.Register(IntentRecognizerSurgery, handleRecognizeSurgery)

	r.Register(IntentRecognizerMedication, recognizer(patient.CatMedication, handleMedications,
		func(c *Context, inst patient.Instance) string {
			m := inst.(*patient.Medication)
			return c.answer(true, strings.Join(nonEmpty(c.say("take"), m.Name, m.Dose, m.Frequency), " "))
		},
		func(c *Context, name string) string {
			return c.answer(false, fmt.Sprintf("%s take %s", c.dont(), name))
		}))

	r.Register(IntentRecognizerAllergy, recognizer(patient.CatAllergy, handleAllergies,
		func(c *Context, inst patient.Instance) string {
			a := inst.(*patient.Allergy)
			text := c.answer(true, fmt.Sprintf("%s allergic to %s", c.say("am"), a.Allergen))
			if a.Reaction != "" {
				text += " " + c.state(fmt.Sprintf("%s %s", c.say("get"), a.Reaction))
			}
			return text
		},
		func(c *Context, name string) string {
			return c.answer(false, fmt.Sprintf("%s not allergic to %s", c.say("am"), name))
		}))

	r.Register(IntentRecognizerSubstance, recognizer(patient.CatSubstance, handleSubstances,
		func(c *Context, inst patient.Instance) string {
			return describeSubstance(c, inst.(*patient.Substance))
		},
		func(c *Context, name string) string {
			return c.answer(false, fmt.Sprintf("%s use %s", c.dont(), name))
		}))

	r.Register(IntentRecognizerTravel, recognizer(patient.CatTravel, handleTravel,
		func(c *Context, inst patient.Instance) string {
			t := inst.(*patient.Trip)
			return c.answer(true, strings.Join(nonEmpty(c.say("went"), "to", t.Location, t.Date), " "))
		},
		func(c *Context, name string) string {
			return c.answer(false, fmt.Sprintf("%s not been to %s", c.say("have"), name))
		}))

	r.Register(IntentRecognizerSymptom, handleRecognizeSymptom)
	r.Register(IntentRecognizerFamily, handleRecognizeFamily)
}

// recognizer builds a "have you ever had X" handler for a category. A turn
// without an entity of the category's type falls back to listing the section.
func recognizer(
	catName string,
	list HandlerFunc,
	yes func(c *Context, inst patient.Instance) string,
	no func(c *Context, name string) string,
) HandlerFunc {
	cat := patient.MustLookup(catName)
	return func(c *Context) (string, error) {
		mentions := c.Turn.Entities.Match(cat.EntityType)
		if len(mentions) == 0 {
			return list(c)
		}
		c.setScope(cat.Scope)
		name := nlu.Normalize(mentions[0].Text)
		inst, ok := cat.Disambiguate(c.Patient, name)
		if !ok {
			return no(c, name), nil
		}
		c.Scope.SetElement(inst.Canonical(), scope.ReplaceTop)
		return yes(c, inst), nil
	}
}

func handleRecognizeSurgery(c *Context) (string, error) {
	mentions := c.Turn.Entities.Match(nlu.TypeSurgery)
	if len(mentions) == 0 {
		return handleSurgeries(c)
	}
	first := mentions[0]
	name := nlu.Normalize(first.Text)

	if first.Is("", papSmearNames...) {
		c.setScope(scope.Gynecologic)
		g := c.Patient.Gynecologic
		if g == nil || len(g.PapSmears) == 0 {
			return c.answer(false, c.say("have")+" never had a pap smear"), nil
		}
		last := g.PapSmears[len(g.PapSmears)-1]
		text := c.answer(true, fmt.Sprintf("%s last pap smear was in %s", c.my(), last.Date))
		if last.Result != "" {
			text += " " + c.state("It was "+last.Result)
		}
		return text, nil
	}

	cat := patient.MustLookup(patient.CatSurgery)
	c.setScope(scope.Surgical)
	inst, ok := cat.Disambiguate(c.Patient, name)
	if !ok {
		return c.answer(false, fmt.Sprintf("%s never had %s%s", c.say("have"), render.Article(name), name)), nil
	}
	s := inst.(*patient.Surgery)
	c.Scope.SetElement(s.Type, scope.ReplaceTop)
	sentence := fmt.Sprintf("%s %s%s", c.say("had"), render.Article(s.Type), s.Type)
	if s.Date != "" {
		sentence += " in " + s.Date
	}
	return c.answer(true, sentence), nil
}

func handleRecognizeSymptom(c *Context) (string, error) {
	mentions := c.Turn.Entities.Match(nlu.TypeSymptom)
	if len(mentions) == 0 {
		return handleAssociatedSymptoms(c)
	}

	loc := resolve.LocateSymptom(c.Turn.Query, c.Turn.Entities, c.Scope, c.Patient)
	if loc.Symptom != nil && loc.Unknown == "" {
		return c.answer(true, fmt.Sprintf("%s %s", c.say("have"), loc.Symptom.Name)), nil
	}

	name := nlu.Normalize(mentions[0].Text)
	if loc.Unknown != "" {
		name = loc.Unknown
	}
	if s := resolve.FocusAnywhere(c.Scope, c.Patient, name); s != nil {
		return c.answer(true, fmt.Sprintf("%s %s", c.say("have"), s.Name)), nil
	}
	return c.answer(false, fmt.Sprintf("%s have any %s", c.dont(), name)), nil
}

func handleRecognizeFamily(c *Context) (string, error) {
	cat := patient.MustLookup(patient.CatFamily)
	c.setScope(scope.Family)
	condition := c.Turn.Entities.First(nlu.TypeDisease)
	relation := c.Turn.Entities.First(nlu.TypeRelationship)

	if relation == "" {
		if condition == "" {
			return handleFamilyHistory(c)
		}
		var who []string
		for _, f := range c.Patient.FamilyHistory {
			if containsFold(f.Conditions, condition) {
				who = append(who, c.my()+" "+f.Relationship)
			}
		}
		if len(who) == 0 {
			return c.answer(false, fmt.Sprintf("nobody in %s family has had %s", c.my(), condition)), nil
		}
		return c.answer(true, fmt.Sprintf("%s had %s", render.JoinWithAnd(who, "and", false), condition)), nil
	}

	inst, ok := cat.Disambiguate(c.Patient, relation)
	if !ok {
		return c.state(fmt.Sprintf("%s know much about %s %s", c.dont(), c.my(), relation)), nil
	}
	f := inst.(*patient.FamilyMember)
	c.Scope.SetElement(f.Relationship, scope.ReplaceTop)
	if condition == "" {
		return describeRelative(c, f), nil
	}
	if containsFold(f.Conditions, condition) {
		return c.answer(true, fmt.Sprintf("%s %s had %s", c.my(), f.Relationship, condition)), nil
	}
	return c.answer(false, fmt.Sprintf("%s %s has never had %s", c.my(), f.Relationship, condition)), nil
}

func describeSubstance(c *Context, s *patient.Substance) string {
	if !s.Current() {
		text := c.answer(false, fmt.Sprintf("not anymore, %s %s", c.say("quit"), s.Quit))
		if s.Quantity != "" {
			text += " " + c.state("Before that it was "+s.Quantity)
		}
		return text
	}
	sentence := fmt.Sprintf("%s %s", c.say("use"), s.Name)
	if s.Quantity != "" {
		sentence += ", " + s.Quantity
	}
	return c.answer(true, sentence)
}

func describeRelative(c *Context, f *patient.FamilyMember) string {
	who := fmt.Sprintf("%s %s", c.my(), f.Relationship)
	var parts []string
	switch {
	case f.Deceased && f.CauseOfDeath != "":
		parts = append(parts, c.state(fmt.Sprintf("%s passed away from %s", who, f.CauseOfDeath)))
	case f.Deceased:
		parts = append(parts, c.state(who+" passed away"))
	case f.Age > 0:
		parts = append(parts, c.state(fmt.Sprintf("%s is %d", who, f.Age)))
	}
	if len(f.Conditions) > 0 {
		parts = append(parts, c.state(fmt.Sprintf("%s had %s", pronounOf(f), render.JoinWithAnd(f.Conditions, "and", false))))
	} else if p := pronounOf(f); p == "they" {
		parts = append(parts, c.state(p+" have been healthy"))
	} else {
		parts = append(parts, c.state(p+" has been healthy"))
	}
	return strings.Join(parts, " ")
}

// pronounOf guesses the relative's pronoun from the relationship
func pronounOf(f *patient.FamilyMember) string {
	switch strings.ToLower(f.Relationship) {
	case "mother", "sister", "grandmother", "aunt", "daughter", "wife":
		return "she"
	case "father", "brother", "grandfather", "uncle", "son", "husband":
		return "he"
	}
	return "they"
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
