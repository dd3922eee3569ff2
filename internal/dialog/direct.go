package dialog

import (
	"fmt"
	"strings"

	"github.com/ppiankov/patientsim/internal/scope"
)

func registerDirect(r *Resolver) {
	r.Register(IntentNone, handleNone)
	r.Register(IntentGreeting, handleGreeting)
	r.Register(IntentGetName, handleName)
	r.Register(IntentGetChiefComplaint, handleChiefComplaint)
	r.Register(IntentGetHousing, socialField(func(c *Context) string { return c.Patient.Social.Housing }))
	r.Register(IntentGetDiet, socialField(func(c *Context) string { return c.Patient.Social.Diet }))
	r.Register(IntentGetExercise, socialField(func(c *Context) string { return c.Patient.Social.Exercise }))
	r.Register(IntentGetOccupation, socialField(func(c *Context) string { return c.Patient.Social.Occupation }))
	r.Register(IntentGetSexualHistory, handleSexualHistory)
	r.Register(IntentGetGynecologicHistory, handleGynecologicHistory)
}

func handleNone(*Context) (string, error) {
	return DefaultReply, nil
}

func handleGreeting(c *Context) (string, error) {
	if fields := strings.Fields(c.UserName); len(fields) > 0 {
		return "Hello, " + fields[0], nil
	}
	return "Hello", nil
}

func handleName(c *Context) (string, error) {
	return c.state(fmt.Sprintf("%s name is %s", c.my(), c.Patient.Name)), nil
}

func handleChiefComplaint(c *Context) (string, error) {
	c.setScope(scope.CCCurrent)
	c.Scope.ClearSubScope()
	cc := c.Patient.ChiefComplaint
	text := c.state(fmt.Sprintf("%s been having %s", c.say("have"), cc.Name))
	if cc.Onset != "" {
		text += " " + c.state("It started "+cc.Onset)
	}
	return text, nil
}

// socialField answers a single-valued social history question
func socialField(field func(c *Context) string) HandlerFunc {
	return func(c *Context) (string, error) {
		c.setScope(scope.Social)
		v := field(c)
		if v == "" {
			return "I'm not sure what to tell you about that.", nil
		}
		return c.state(v), nil
	}
}

func handleSexualHistory(c *Context) (string, error) {
	c.setScope(scope.Sexual)
	sx := c.Patient.Sexual
	if sx == nil || !sx.Active {
		return c.answer(false, c.say("am")+" not sexually active"), nil
	}
	sentence := c.say("am") + " sexually active"
	if sx.Partners != "" {
		sentence += " with " + sx.Partners
	}
	text := c.answer(true, sentence)
	if sx.Protection != "" {
		text += " " + c.state("As for protection, "+sx.Protection)
	}
	return text, nil
}

func handleGynecologicHistory(c *Context) (string, error) {
	c.setScope(scope.Gynecologic)
	g := c.Patient.Gynecologic
	if g == nil {
		return c.state(c.say("have") + " nothing to report there"), nil
	}
	var parts []string
	if g.Menarche > 0 {
		parts = append(parts, c.state(fmt.Sprintf("%s first period was at age %d", c.my(), g.Menarche)))
	}
	if g.LastPeriod != "" {
		parts = append(parts, c.state(fmt.Sprintf("%s last period was %s", c.my(), g.LastPeriod)))
	}
	if g.CycleLength != "" {
		regularity := "irregular"
		if g.Regular {
			regularity = "regular"
		}
		parts = append(parts, c.state(fmt.Sprintf("%s cycles are %s, about every %s", c.my(), regularity, g.CycleLength)))
	}
	if len(parts) == 0 {
		return c.state(c.say("have") + " nothing to report there"), nil
	}
	return strings.Join(parts, " "), nil
}
