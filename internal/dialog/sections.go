package dialog

import (
	"fmt"
	"strings"

	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/render"
	"github.com/ppiankov/patientsim/internal/scope"
)

func registerSections(r *Resolver) {
	r.Register(IntentGetMedications, handleMedications)
	r.Register(IntentGetAllergies, handleAllergies)
	r.Register(IntentGetSurgeries, handleSurgeries)
	r.Register(IntentGetFamilyHistory, handleFamilyHistory)
	r.Register(IntentGetSubstances, handleSubstances)
	r.Register(IntentGetTravel, handleTravel)
}

// enterSection moves focus to a section, pinning the element when the
// section holds exactly one instance so follow-ups resolve to it
func enterSection(c *Context, catName string) []string {
	cat := patient.MustLookup(catName)
	c.setScope(cat.Scope)
	names := cat.Names(c.Patient)
	if len(names) == 1 {
		c.Scope.SetElement(names[0], scope.ReplaceTop)
	}
	return names
}

func handleDiseases(c *Context) (string, error) {
	names := enterSection(c, patient.CatDisease)
	if len(names) == 0 {
		return c.answer(false, c.say("have")+" never been diagnosed with any medical conditions"), nil
	}
	return c.answer(true, fmt.Sprintf("%s %s", c.say("have"), render.JoinWithAnd(names, "and", false))), nil
}

func handleMedications(c *Context) (string, error) {
	names := enterSection(c, patient.CatMedication)
	if len(names) == 0 {
		return c.answer(false, fmt.Sprintf("%s take any medications", c.dont())), nil
	}
	return c.answer(true, fmt.Sprintf("%s %s", c.say("take"), render.JoinWithAnd(names, "and", false))), nil
}

func handleAllergies(c *Context) (string, error) {
	names := enterSection(c, patient.CatAllergy)
	if len(names) == 0 {
		return c.answer(false, fmt.Sprintf("%s have any allergies", c.dont())), nil
	}
	return c.answer(true, fmt.Sprintf("%s allergic to %s", c.say("am"), render.JoinWithAnd(names, "and", false))), nil
}

func handleSurgeries(c *Context) (string, error) {
	names := enterSection(c, patient.CatSurgery)
	if len(names) == 0 {
		return c.answer(false, c.say("have")+" never had any surgeries"), nil
	}
	return c.answer(true, fmt.Sprintf("%s %s", c.say("had"), render.JoinWithAnd(names, "and", true))), nil
}

func handleFamilyHistory(c *Context) (string, error) {
	enterSection(c, patient.CatFamily)
	members := c.Patient.FamilyHistory
	if len(members) == 0 {
		return c.answer(false, fmt.Sprintf("there isn't anything that runs in %s family", c.my())), nil
	}
	var parts []string
	for _, f := range members {
		if len(f.Conditions) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s had %s", c.my(), f.Relationship, render.JoinWithAnd(f.Conditions, "and", false)))
	}
	if len(parts) == 0 {
		return c.answer(false, fmt.Sprintf("everyone in %s family is healthy", c.my())), nil
	}
	return c.answer(true, strings.Join(parts, ", and ")), nil
}

func handleSubstances(c *Context) (string, error) {
	enterSection(c, patient.CatSubstance)
	var current, past []string
	for _, s := range c.Patient.Substances {
		if s.Current() {
			current = append(current, s.Name)
		} else {
			past = append(past, s.Name)
		}
	}
	if len(current) == 0 && len(past) == 0 {
		return c.answer(false, fmt.Sprintf("%s smoke, drink or use drugs", c.dont())), nil
	}
	if len(current) == 0 {
		return c.answer(false, fmt.Sprintf("not anymore, %s to use %s", c.say("used"), render.JoinWithAnd(past, "and", false))), nil
	}
	text := c.answer(true, fmt.Sprintf("%s %s", c.say("use"), render.JoinWithAnd(current, "and", false)))
	if len(past) > 0 {
		text += " " + c.state(fmt.Sprintf("%s to use %s but %s", c.say("used"), render.JoinWithAnd(past, "and", false), c.say("quit")))
	}
	return text, nil
}

func handleTravel(c *Context) (string, error) {
	names := enterSection(c, patient.CatTravel)
	if len(names) == 0 {
		return c.answer(false, c.say("have")+" not traveled anywhere recently"), nil
	}
	return c.answer(true, fmt.Sprintf("%s to %s", c.say("went"), render.JoinWithAnd(names, "and", false))), nil
}
