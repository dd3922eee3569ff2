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

var (
	periodKeywords    = []string{"period", "periods", "menstrual", "menses", "menstruation"}
	menarcheKeywords  = []string{"first period", "menarche"}
	birthKeywords     = []string{"pregnancy", "pregnancies", "pregnant", "born", "birth", "delivery", "baby"}
	quitKeywords      = []string{"quit", "stop", "stopped", "quitting"}
	betterKeywords    = []string{"better", "relieve", "relieves", "help", "helps", "alleviate"}
	worseKeywords     = []string{"worse", "aggravate", "aggravates", "trigger", "triggers"}
	radiationKeywords = []string{"radiate", "radiates", "spread", "spreads", "move", "moves", "go", "goes"}
)

func registerCrossElement(r *Resolver) {
	r.Register(IntentGetAge, handleAge)
	r.Register(IntentGetGender, handleGender)
	r.Register(IntentGetCategory, handleCategory)
	r.Register(IntentGetComplications, handleComplications)
	r.Register(IntentGetDisease, handleDisease)
	r.Register(IntentGetExposure, handleExposure)
	r.Register(IntentGetIndication, handleIndication)
	r.Register(IntentGetLocation, handleLocation)
	r.Register(IntentGetQuantity, handleQuantity)
	r.Register(IntentGetTime, handleTime)
	r.Register(IntentGetTreatment, handleTreatment)
}

// topic picks the section a cross-element question is about. An entity of a
// candidate's type wins, then the scope already in focus. Birth is only
// chosen by scope or by a birth keyword since its entity type is generic.
func (c *Context) topic(candidates ...string) *patient.Category {
	for _, name := range candidates {
		cat := patient.MustLookup(name)
		if cat.KeywordElement {
			if c.keyword(birthKeywords...) {
				return cat
			}
			continue
		}
		if c.has(cat.EntityType) {
			return cat
		}
	}
	for _, name := range candidates {
		cat := patient.MustLookup(name)
		if c.Scope.Is(cat.Scope) {
			return cat
		}
	}
	return nil
}

// identify resolves the instance of cat the turn refers to
func (c *Context) identify(cat *patient.Category) patient.Instance {
	return resolve.Identify(cat, c.Turn.Entities, c.Turn.Resumed, c.Scope, c.Patient)
}

// instanceOr resolves an instance of cat, or returns the reply to send
// instead: a clarification question or the empty-section answer
func (c *Context) instanceOr(cat *patient.Category, empty string) (patient.Instance, string) {
	if len(cat.Instances(c.Patient)) == 0 {
		c.setScope(cat.Scope)
		return nil, c.state(empty)
	}
	inst := c.identify(cat)
	if inst == nil {
		return nil, c.ask(cat)
	}
	c.setScope(cat.Scope)
	return inst, ""
}

func handleAge(c *Context) (string, error) {
	if c.has(nlu.TypeRelationship) || (c.Scope.Is(scope.Family) && c.Scope.Depth() > 0) {
		inst, reply := c.instanceOr(patient.MustLookup(patient.CatFamily), "there isn't anyone to tell you about")
		if inst == nil {
			return reply, nil
		}
		f := inst.(*patient.FamilyMember)
		who := fmt.Sprintf("%s %s", c.my(), f.Relationship)
		switch {
		case f.Deceased && f.CauseOfDeath != "":
			return c.state(fmt.Sprintf("%s passed away from %s", who, f.CauseOfDeath)), nil
		case f.Age > 0:
			return c.state(fmt.Sprintf("%s is %d", who, f.Age)), nil
		}
		return c.state(fmt.Sprintf("%s know exactly how old %s %s is", c.dont(), c.my(), f.Relationship)), nil
	}

	if c.keyword(menarcheKeywords...) || (c.keyword(periodKeywords...) && c.Patient.Gynecologic != nil) {
		c.setScope(scope.Gynecologic)
		g := c.Patient.Gynecologic
		if g == nil || g.Menarche == 0 {
			return c.state(c.dont() + " remember"), nil
		}
		return c.state(fmt.Sprintf("%s %d when %s had %s first period", c.say("was"), g.Menarche, c.speaker().Subject(), c.my())), nil
	}

	age := c.Patient.Age
	return c.state(fmt.Sprintf("%s %d %s old", c.say("am"), age.Value, age)), nil
}

func handleGender(c *Context) (string, error) {
	return c.state(fmt.Sprintf("%s %s", c.say("am"), orDefault(c.Patient.Gender, "not sure how to answer that"))), nil
}

func handleCategory(c *Context) (string, error) {
	if cat := c.topic(patient.CatAllergy); cat != nil {
		inst, reply := c.instanceOr(cat, c.dont()+" have any allergies")
		if inst == nil {
			return reply, nil
		}
		a := inst.(*patient.Allergy)
		if a.Reaction == "" {
			return c.state(c.dont() + " remember what kind of reaction it was"), nil
		}
		return c.state(fmt.Sprintf("%s %s", c.say("get"), a.Reaction)), nil
	}

	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		if s.Quality == "" {
			return c.state("It's hard to describe")
		}
		return c.state("It feels " + s.Quality)
	}), nil
}

func handleComplications(c *Context) (string, error) {
	cat := c.topic(patient.CatSurgery, patient.CatDisease, patient.CatBirth)
	if cat == nil {
		return c.answer(false, "there weren't any complications"), nil
	}
	inst, reply := c.instanceOr(cat, "there weren't any complications")
	if inst == nil {
		return reply, nil
	}

	var complications []string
	switch v := inst.(type) {
	case *patient.Surgery:
		complications = v.Complications
	case *patient.Diagnosis:
		complications = v.Complications
	case *patient.Pregnancy:
		complications = v.Complications
	case *patient.OwnBirth:
		complications = v.Complications
	}
	if len(complications) == 0 {
		return c.answer(false, "there weren't any complications"), nil
	}
	return c.answer(true, fmt.Sprintf("there %s %s", wasWere(complications), render.JoinWithAnd(complications, "and", false))), nil
}

func handleDisease(c *Context) (string, error) {
	if c.has(nlu.TypeRelationship) {
		return handleRecognizeFamily(c)
	}
	if c.has(nlu.TypeDisease) {
		return recognizeDisease(c)
	}
	return handleDiseases(c)
}

func handleExposure(c *Context) (string, error) {
	if cat := c.topic(patient.CatTravel); cat != nil {
		inst, reply := c.instanceOr(cat, c.say("have")+" not traveled anywhere recently")
		if inst == nil {
			return reply, nil
		}
		t := inst.(*patient.Trip)
		if len(t.Exposures) == 0 {
			return c.answer(false, "not that I know of"), nil
		}
		return c.answer(true, fmt.Sprintf("while in %s %s exposed to %s", t.Location, c.say("was"), render.JoinWithAnd(t.Exposures, "and", false))), nil
	}

	c.setScope(scope.Social)
	social := c.Patient.Social
	exposures := append(append([]string(nil), social.SickContacts...), social.Exposures...)
	if len(exposures) == 0 {
		return c.answer(false, "not that I know of"), nil
	}
	return c.answer(true, render.JoinWithAnd(exposures, "and", false)), nil
}

func handleIndication(c *Context) (string, error) {
	cat := c.topic(patient.CatMedication, patient.CatSurgery)
	if cat == nil {
		cat = patient.MustLookup(patient.CatMedication)
		if len(cat.Instances(c.Patient)) == 0 && len(c.Patient.SurgicalHistory) > 0 {
			cat = patient.MustLookup(patient.CatSurgery)
		}
	}

	switch cat.Name {
	case patient.CatSurgery:
		inst, reply := c.instanceOr(cat, c.say("have")+" never had any surgeries")
		if inst == nil {
			return reply, nil
		}
		s := inst.(*patient.Surgery)
		if s.Indication == "" {
			return c.state(fmt.Sprintf("%s remember why %s had the %s", c.dont(), c.speaker().Subject(), s.Type)), nil
		}
		return c.state(fmt.Sprintf("%s the %s because of %s", c.say("had"), s.Type, s.Indication)), nil
	default:
		inst, reply := c.instanceOr(cat, c.dont()+" take any medications")
		if inst == nil {
			return reply, nil
		}
		m := inst.(*patient.Medication)
		if m.Indication == "" {
			return c.state(fmt.Sprintf("%s not sure, the doctor told %s to take it", c.say("am"), c.speaker().Object())), nil
		}
		return c.state(fmt.Sprintf("%s %s for %s", c.say("take"), m.Name, m.Indication)), nil
	}
}

func handleLocation(c *Context) (string, error) {
	if cat := c.topic(patient.CatSurgery, patient.CatTravel); cat != nil {
		switch cat.Name {
		case patient.CatSurgery:
			inst, reply := c.instanceOr(cat, c.say("have")+" never had any surgeries")
			if inst == nil {
				return reply, nil
			}
			s := inst.(*patient.Surgery)
			if s.Location == "" {
				return c.state(fmt.Sprintf("%s remember where %s had it done", c.dont(), c.speaker().Subject())), nil
			}
			return c.state(fmt.Sprintf("%s the %s at %s", c.say("had"), s.Type, s.Location)), nil
		default:
			return handleTravel(c)
		}
	}

	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		if c.keyword(radiationKeywords...) && s.Radiation != "" {
			return c.state("It goes " + s.Radiation)
		}
		if s.Location == "" {
			return c.state(c.say("can") + "'t really point to one spot")
		}
		text := c.state("It is in " + s.Location)
		if s.Radiation != "" {
			text += " " + c.state("It goes "+s.Radiation)
		}
		return text
	}), nil
}

func handleQuantity(c *Context) (string, error) {
	if c.keyword(birthKeywords...) && c.Patient.Birth != nil && len(c.Patient.Birth.Pregnancies) > 0 {
		c.setScope(scope.Birth)
		n := len(c.Patient.Birth.Pregnancies)
		return c.state(fmt.Sprintf("%s been pregnant %d %s", c.say("have"), n, render.Pluralize("time", n))), nil
	}

	cat := c.topic(patient.CatSubstance, patient.CatMedication)
	if cat == nil {
		return c.state(c.say("am") + " not sure"), nil
	}
	switch cat.Name {
	case patient.CatSubstance:
		inst, reply := c.instanceOr(cat, c.dont()+" smoke, drink or use drugs")
		if inst == nil {
			return reply, nil
		}
		s := inst.(*patient.Substance)
		if s.Quantity == "" {
			return c.state(c.say("am") + " not sure exactly how much"), nil
		}
		return c.state(s.Quantity), nil
	default:
		inst, reply := c.instanceOr(cat, c.dont()+" take any medications")
		if inst == nil {
			return reply, nil
		}
		m := inst.(*patient.Medication)
		dose := strings.Join(nonEmpty(m.Dose, m.Frequency), " ")
		if dose == "" {
			return c.state(fmt.Sprintf("%s remember the dose of %s", c.dont(), m.Name)), nil
		}
		return c.state(fmt.Sprintf("%s %s %s", c.say("take"), m.Name, dose)), nil
	}
}

func handleTime(c *Context) (string, error) {
	if c.keyword(periodKeywords...) && !c.keyword(menarcheKeywords...) {
		c.setScope(scope.Gynecologic)
		g := c.Patient.Gynecologic
		if g == nil || g.LastPeriod == "" {
			return c.state(c.dont() + " remember"), nil
		}
		return c.state(fmt.Sprintf("%s last period was %s", c.my(), g.LastPeriod)), nil
	}
	if c.keyword(menarcheKeywords...) {
		return handleAge(c)
	}

	cat := c.topic(patient.CatDisease, patient.CatSurgery, patient.CatMedication,
		patient.CatAllergy, patient.CatSubstance, patient.CatTravel, patient.CatBirth)
	if cat == nil {
		return symptomAnswer(c, func(s *patient.Symptom, previous bool) string {
			if previous {
				return c.state("That was " + orDefault(s.Date, "a while ago"))
			}
			if s.Onset == "" {
				return c.state(c.dont() + " remember exactly when it started")
			}
			return c.state("It started " + s.Onset)
		}), nil
	}

	inst, reply := c.instanceOr(cat, c.dont()+" remember")
	if inst == nil {
		return reply, nil
	}
	unknown := c.state(c.dont() + " remember exactly when")

	switch v := inst.(type) {
	case *patient.Diagnosis:
		if v.Date == "" {
			return unknown, nil
		}
		return c.state(fmt.Sprintf("%s diagnosed with %s in %s", c.say("was"), v.Name, v.Date)), nil
	case *patient.Surgery:
		if v.Date == "" {
			return unknown, nil
		}
		return c.state(fmt.Sprintf("%s the %s in %s", c.say("had"), v.Type, v.Date)), nil
	case *patient.Medication:
		if v.Started == "" {
			return unknown, nil
		}
		return c.state(fmt.Sprintf("%s taking %s in %s", c.say("started"), v.Name, v.Started)), nil
	case *patient.Allergy:
		if v.Since == "" {
			return unknown, nil
		}
		return c.state(fmt.Sprintf("%s been allergic to %s since %s", c.say("have"), v.Allergen, v.Since)), nil
	case *patient.Substance:
		if c.keyword(quitKeywords...) || (!v.Current() && v.Started == "") {
			if v.Current() {
				return c.state(c.say("have") + " not quit"), nil
			}
			return c.state(fmt.Sprintf("%s %s", c.say("quit"), v.Quit)), nil
		}
		if v.Started == "" {
			return unknown, nil
		}
		return c.state(fmt.Sprintf("%s %s", c.say("started"), v.Started)), nil
	case *patient.Trip:
		if v.Date == "" {
			return unknown, nil
		}
		return c.state(fmt.Sprintf("%s to %s %s", c.say("went"), v.Location, v.Date)), nil
	case *patient.Pregnancy:
		if v.Date == "" {
			return unknown, nil
		}
		return c.state("That was in " + v.Date), nil
	case *patient.OwnBirth:
		if v.GestationalAge == "" {
			return unknown, nil
		}
		return c.state(fmt.Sprintf("%s born at %s", c.say("was"), v.GestationalAge)), nil
	}
	return unknown, nil
}

func handleTreatment(c *Context) (string, error) {
	if cat := c.topic(patient.CatDisease, patient.CatAllergy); cat != nil {
		inst, reply := c.instanceOr(cat, c.dont()+" have anything that needs treatment")
		if inst == nil {
			return reply, nil
		}
		switch v := inst.(type) {
		case *patient.Diagnosis:
			if v.Treatment == "" {
				return c.state(fmt.Sprintf("%s take anything for %s", c.dont(), v.Name)), nil
			}
			return c.state(fmt.Sprintf("%s %s for %s", c.say("take"), v.Treatment, v.Name)), nil
		case *patient.Allergy:
			if v.Treatment == "" {
				return c.state(c.say("avoid") + " it"), nil
			}
			return c.state(fmt.Sprintf("%s %s when it happens", c.say("take"), v.Treatment)), nil
		}
	}

	return symptomAnswer(c, func(s *patient.Symptom, _ bool) string {
		if len(s.Treatments) == 0 {
			return c.answer(false, c.say("have")+" not tried anything for it")
		}
		return c.answer(true, fmt.Sprintf("%s %s", c.say("tried"), render.JoinWithAnd(s.Treatments, "and", false)))
	}), nil
}

func wasWere(items []string) string {
	if len(items) > 1 {
		return "were"
	}
	return "was"
}
