package patient

import (
	"strings"

	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/scope"
)

// Instance is one entry of a repeatable history section
type Instance interface {
	// Canonical is the identifier written to the scope element stack
	Canonical() string
	// Matches reports whether text names this instance
	Matches(text string) bool
}

func (d *Diagnosis) Canonical() string        { return d.Name }
func (d *Diagnosis) Matches(text string) bool { return matchName(text, d.Name, d.Synonyms) }

func (s *Surgery) Canonical() string        { return s.Type }
func (s *Surgery) Matches(text string) bool { return matchName(text, s.Type, s.Synonyms) }

func (m *Medication) Canonical() string        { return m.Name }
func (m *Medication) Matches(text string) bool { return matchName(text, m.Name, m.Synonyms) }

func (a *Allergy) Canonical() string        { return a.Allergen }
func (a *Allergy) Matches(text string) bool { return matchName(text, a.Allergen, a.Synonyms) }

func (f *FamilyMember) Canonical() string { return f.Relationship }
func (f *FamilyMember) Matches(text string) bool {
	return matchName(text, f.Relationship, f.Synonyms)
}

func (s *Substance) Canonical() string        { return s.Name }
func (s *Substance) Matches(text string) bool { return matchName(text, s.Name, s.Synonyms) }

func (t *Trip) Canonical() string        { return t.Location }
func (t *Trip) Matches(text string) bool { return matchName(text, t.Location, t.Synonyms) }

func (o *OwnBirth) Canonical() string   { return "birth" }
func (o *OwnBirth) Matches(string) bool { return true }

func (p *Pregnancy) Canonical() string   { return p.Date }
func (p *Pregnancy) Matches(string) bool { return false }

// Category describes a repeatable history section: where its instances
// live, which entity type names them, and the scope that holds them.
type Category struct {
	Name       string
	EntityType string
	Scope      scope.Value
	// Noun is used in "Which <noun> are you referring to?"
	Noun string
	// KeywordElement stores the matched keyword rather than the instance's
	// canonical name in the element stack
	KeywordElement bool

	instances func(r *Record) []Instance
	resolve   func(insts []Instance, value string) Instance
}

// Category names
const (
	CatDisease    = "disease"
	CatSurgery    = "surgery"
	CatMedication = "medication"
	CatAllergy    = "allergy"
	CatFamily     = "family"
	CatSubstance  = "substance"
	CatTravel     = "travel"
	CatBirth      = "birth"
)

var categories = map[string]*Category{
	CatDisease: {
		Name: CatDisease, EntityType: nlu.TypeDisease, Scope: scope.Medical, Noun: "condition",
		instances: func(r *Record) []Instance { return collect(r.MedicalHistory) },
	},
	CatSurgery: {
		Name: CatSurgery, EntityType: nlu.TypeSurgery, Scope: scope.Surgical, Noun: "surgery",
		instances: func(r *Record) []Instance { return collect(r.SurgicalHistory) },
	},
	CatMedication: {
		Name: CatMedication, EntityType: nlu.TypeMedication, Scope: scope.Medications, Noun: "medication",
		instances: func(r *Record) []Instance { return collect(r.Medications) },
	},
	CatAllergy: {
		Name: CatAllergy, EntityType: nlu.TypeAllergy, Scope: scope.Allergies, Noun: "allergy",
		instances: func(r *Record) []Instance { return collect(r.Allergies) },
	},
	CatFamily: {
		Name: CatFamily, EntityType: nlu.TypeRelationship, Scope: scope.Family, Noun: "family member",
		instances: func(r *Record) []Instance { return collect(r.FamilyHistory) },
	},
	CatSubstance: {
		Name: CatSubstance, EntityType: nlu.TypeSubstance, Scope: scope.Substances, Noun: "substance",
		instances: func(r *Record) []Instance { return collect(r.Substances) },
	},
	CatTravel: {
		Name: CatTravel, EntityType: nlu.TypeGeography, Scope: scope.Travel, Noun: "trip",
		instances: func(r *Record) []Instance { return collect(r.Travel) },
	},
	CatBirth: {
		Name: CatBirth, EntityType: nlu.TypeTimeQualifier, Scope: scope.Birth, Noun: "pregnancy",
		KeywordElement: true,
		instances:      birthInstances,
		resolve:        byOrdinal,
	},
}

// Lookup returns the category with the given name
func Lookup(name string) (*Category, bool) {
	c, ok := categories[name]
	return c, ok
}

// MustLookup is Lookup for names known at compile time
func MustLookup(name string) *Category {
	c, ok := Lookup(name)
	if !ok {
		panic("patient: unknown category " + name)
	}
	return c
}

// Instances returns the record's instances of the category
func (c *Category) Instances(r *Record) []Instance {
	if r == nil {
		return nil
	}
	return c.instances(r)
}

// Disambiguate resolves an informal name (or, for birth, an ordinal keyword)
// to an instance of the category
func (c *Category) Disambiguate(r *Record, value string) (Instance, bool) {
	insts := c.Instances(r)
	if c.resolve != nil {
		inst := c.resolve(insts, value)
		return inst, inst != nil
	}
	for _, inst := range insts {
		if inst.Matches(value) {
			return inst, true
		}
	}
	return nil, false
}

// FindByElement looks an instance up by a canonical identifier stored in
// the scope element stack
func (c *Category) FindByElement(r *Record, element string) (Instance, bool) {
	if element == "" {
		return nil, false
	}
	if c.KeywordElement {
		return c.Disambiguate(r, element)
	}
	for _, inst := range c.Instances(r) {
		if strings.EqualFold(inst.Canonical(), element) {
			return inst, true
		}
	}
	return nil, false
}

// Names returns the canonical names of the record's instances
func (c *Category) Names(r *Record) []string {
	insts := c.Instances(r)
	out := make([]string, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.Canonical())
	}
	return out
}

func birthInstances(r *Record) []Instance {
	if r.Birth == nil {
		return nil
	}
	if r.Birth.Own != nil && r.Speaker().Pediatric() {
		return []Instance{r.Birth.Own}
	}
	if r.Gynecologic != nil || len(r.Birth.Pregnancies) > 0 {
		return collect(r.Birth.Pregnancies)
	}
	if r.Birth.Own != nil {
		return []Instance{r.Birth.Own}
	}
	return nil
}

var ordinals = map[string]int{
	"first": 0, "earliest": 0, "oldest": 0,
	"second": 1, "third": 2, "fourth": 3,
}

var latest = map[string]bool{
	"last": true, "latest": true, "most recent": true, "recent": true, "newest": true,
}

func byOrdinal(insts []Instance, value string) Instance {
	if len(insts) == 0 {
		return nil
	}
	v := nlu.Normalize(value)
	if latest[v] {
		return insts[len(insts)-1]
	}
	if i, ok := ordinals[v]; ok && i < len(insts) {
		return insts[i]
	}
	return nil
}

// collect adapts a slice of records to instances pointing into it
func collect[T any, P interface {
	*T
	Instance
}](items []T) []Instance {
	out := make([]Instance, 0, len(items))
	for i := range items {
		out = append(out, P(&items[i]))
	}
	return out
}
