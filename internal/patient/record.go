// Package patient holds the structured case a simulated patient answers from.
package patient

import (
	"strings"

	"github.com/ppiankov/patientsim/internal/render"
)

// Record is one complete patient case. It is read-only once loaded.
type Record struct {
	ID               string         `yaml:"id" json:"id"`
	Name             string         `yaml:"name" json:"name"`
	Age              Age            `yaml:"age" json:"age"`
	Gender           string         `yaml:"gender" json:"gender"`
	Category         string         `yaml:"category" json:"category"`
	ChiefComplaint   Symptom        `yaml:"chief_complaint" json:"chief_complaint"`
	PreviousEpisodes []Symptom      `yaml:"previous_episodes,omitempty" json:"previous_episodes,omitempty"`
	MedicalHistory   []Diagnosis    `yaml:"medical_history,omitempty" json:"medical_history,omitempty"`
	SurgicalHistory  []Surgery      `yaml:"surgical_history,omitempty" json:"surgical_history,omitempty"`
	Medications      []Medication   `yaml:"medications,omitempty" json:"medications,omitempty"`
	Allergies        []Allergy      `yaml:"allergies,omitempty" json:"allergies,omitempty"`
	FamilyHistory    []FamilyMember `yaml:"family_history,omitempty" json:"family_history,omitempty"`
	Social           Social         `yaml:"social" json:"social"`
	Substances       []Substance    `yaml:"substances,omitempty" json:"substances,omitempty"`
	Travel           []Trip         `yaml:"travel,omitempty" json:"travel,omitempty"`
	Sexual           *Sexual        `yaml:"sexual_history,omitempty" json:"sexual_history,omitempty"`
	Gynecologic      *Gynecologic   `yaml:"gynecologic_history,omitempty" json:"gynecologic_history,omitempty"`
	Birth            *Birth         `yaml:"birth_history,omitempty" json:"birth_history,omitempty"`
}

// Age is a value with its unit (day, week, month, year)
type Age struct {
	Value int    `yaml:"value" json:"value"`
	Unit  string `yaml:"unit" json:"unit"`
}

func (a Age) String() string {
	return render.Pluralize(a.UnitName(), a.Value)
}

// UnitName returns the singular unit, "year" when unset
func (a Age) UnitName() string {
	unit := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(a.Unit)), "s")
	if unit == "" {
		return "year"
	}
	return unit
}

// Speaker returns who voices this patient's answers
func (r *Record) Speaker() render.Speaker {
	return render.Speaker{AgeValue: r.Age.Value, AgeUnit: r.Age.Unit, Gender: r.Gender}
}

// Symptom is a complaint with its history-of-present-illness details.
// Associated symptoms nest to any depth.
type Symptom struct {
	Name        string    `yaml:"name" json:"name"`
	Synonyms    []string  `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Date        string    `yaml:"date,omitempty" json:"date,omitempty"`
	Onset       string    `yaml:"onset,omitempty" json:"onset,omitempty"`
	Duration    string    `yaml:"duration,omitempty" json:"duration,omitempty"`
	Location    string    `yaml:"location,omitempty" json:"location,omitempty"`
	Radiation   string    `yaml:"radiation,omitempty" json:"radiation,omitempty"`
	Quality     string    `yaml:"quality,omitempty" json:"quality,omitempty"`
	Severity    string    `yaml:"severity,omitempty" json:"severity,omitempty"`
	Progression string    `yaml:"progression,omitempty" json:"progression,omitempty"`
	Precipitant string    `yaml:"precipitant,omitempty" json:"precipitant,omitempty"`
	Alleviating []string  `yaml:"alleviating,omitempty" json:"alleviating,omitempty"`
	Aggravating []string  `yaml:"aggravating,omitempty" json:"aggravating,omitempty"`
	Treatments  []string  `yaml:"treatments,omitempty" json:"treatments,omitempty"`
	Associated  []Symptom `yaml:"associated,omitempty" json:"associated,omitempty"`
}

// Matches reports whether text names this symptom or one of its synonyms
func (s *Symptom) Matches(text string) bool {
	return matchName(text, s.Name, s.Synonyms)
}

// FindAssociated returns the directly associated symptom named by text
func (s *Symptom) FindAssociated(text string) *Symptom {
	for i := range s.Associated {
		if s.Associated[i].Matches(text) {
			return &s.Associated[i]
		}
	}
	return nil
}

// AssociatedNames lists the names of the directly associated symptoms
func (s *Symptom) AssociatedNames() []string {
	out := make([]string, 0, len(s.Associated))
	for _, a := range s.Associated {
		out = append(out, a.Name)
	}
	return out
}

// Diagnosis is an entry of the past medical history
type Diagnosis struct {
	Name          string   `yaml:"name" json:"name"`
	Synonyms      []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Date          string   `yaml:"date,omitempty" json:"date,omitempty"`
	Treatment     string   `yaml:"treatment,omitempty" json:"treatment,omitempty"`
	Complications []string `yaml:"complications,omitempty" json:"complications,omitempty"`
}

// Surgery is an entry of the past surgical history
type Surgery struct {
	Type          string   `yaml:"type" json:"type"`
	Synonyms      []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Date          string   `yaml:"date,omitempty" json:"date,omitempty"`
	Indication    string   `yaml:"indication,omitempty" json:"indication,omitempty"`
	Location      string   `yaml:"location,omitempty" json:"location,omitempty"`
	Complications []string `yaml:"complications,omitempty" json:"complications,omitempty"`
}

// Medication is a drug the patient currently takes
type Medication struct {
	Name        string   `yaml:"name" json:"name"`
	Synonyms    []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Dose        string   `yaml:"dose,omitempty" json:"dose,omitempty"`
	Frequency   string   `yaml:"frequency,omitempty" json:"frequency,omitempty"`
	Indication  string   `yaml:"indication,omitempty" json:"indication,omitempty"`
	Started     string   `yaml:"started,omitempty" json:"started,omitempty"`
	SideEffects []string `yaml:"side_effects,omitempty" json:"side_effects,omitempty"`
}

// Allergy is a known allergen and the reaction to it
type Allergy struct {
	Allergen  string   `yaml:"allergen" json:"allergen"`
	Synonyms  []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Reaction  string   `yaml:"reaction,omitempty" json:"reaction,omitempty"`
	Treatment string   `yaml:"treatment,omitempty" json:"treatment,omitempty"`
	Since     string   `yaml:"since,omitempty" json:"since,omitempty"`
}

// FamilyMember is a relative and the conditions they had
type FamilyMember struct {
	Relationship string   `yaml:"relationship" json:"relationship"`
	Synonyms     []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Age          int      `yaml:"age,omitempty" json:"age,omitempty"`
	Deceased     bool     `yaml:"deceased,omitempty" json:"deceased,omitempty"`
	CauseOfDeath string   `yaml:"cause_of_death,omitempty" json:"cause_of_death,omitempty"`
	Conditions   []string `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Social is the single-valued social history
type Social struct {
	Housing      string   `yaml:"housing,omitempty" json:"housing,omitempty"`
	Diet         string   `yaml:"diet,omitempty" json:"diet,omitempty"`
	Exercise     string   `yaml:"exercise,omitempty" json:"exercise,omitempty"`
	Occupation   string   `yaml:"occupation,omitempty" json:"occupation,omitempty"`
	SickContacts []string `yaml:"sick_contacts,omitempty" json:"sick_contacts,omitempty"`
	Exposures    []string `yaml:"exposures,omitempty" json:"exposures,omitempty"`
}

// Substance is tobacco, alcohol or drug use
type Substance struct {
	Name     string   `yaml:"name" json:"name"`
	Synonyms []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Quantity string   `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	Started  string   `yaml:"started,omitempty" json:"started,omitempty"`
	Quit     string   `yaml:"quit,omitempty" json:"quit,omitempty"`
}

// Current reports whether the substance is still used
func (s *Substance) Current() bool { return s.Quit == "" }

// Trip is a recent travel destination
type Trip struct {
	Location  string   `yaml:"location" json:"location"`
	Synonyms  []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Date      string   `yaml:"date,omitempty" json:"date,omitempty"`
	Duration  string   `yaml:"duration,omitempty" json:"duration,omitempty"`
	Exposures []string `yaml:"exposures,omitempty" json:"exposures,omitempty"`
}

// Sexual is the sexual history
type Sexual struct {
	Active     bool     `yaml:"active" json:"active"`
	Partners   string   `yaml:"partners,omitempty" json:"partners,omitempty"`
	Protection string   `yaml:"protection,omitempty" json:"protection,omitempty"`
	Infections []string `yaml:"infections,omitempty" json:"infections,omitempty"`
}

// Gynecologic is the menstrual and screening history
type Gynecologic struct {
	Menarche      int        `yaml:"menarche,omitempty" json:"menarche,omitempty"`
	LastPeriod    string     `yaml:"last_period,omitempty" json:"last_period,omitempty"`
	CycleLength   string     `yaml:"cycle_length,omitempty" json:"cycle_length,omitempty"`
	Regular       bool       `yaml:"regular,omitempty" json:"regular,omitempty"`
	Contraception string     `yaml:"contraception,omitempty" json:"contraception,omitempty"`
	PapSmears     []PapSmear `yaml:"pap_smears,omitempty" json:"pap_smears,omitempty"`
}

// PapSmear is one cervical screening result
type PapSmear struct {
	Date   string `yaml:"date" json:"date"`
	Result string `yaml:"result,omitempty" json:"result,omitempty"`
}

// Birth holds either the patient's own birth (pediatric cases) or the
// patient's pregnancies (obstetric cases)
type Birth struct {
	Own         *OwnBirth   `yaml:"own,omitempty" json:"own,omitempty"`
	Pregnancies []Pregnancy `yaml:"pregnancies,omitempty" json:"pregnancies,omitempty"`
}

// OwnBirth is a child's birth and developmental history
type OwnBirth struct {
	GestationalAge string   `yaml:"gestational_age,omitempty" json:"gestational_age,omitempty"`
	Delivery       string   `yaml:"delivery,omitempty" json:"delivery,omitempty"`
	Weight         string   `yaml:"weight,omitempty" json:"weight,omitempty"`
	Complications  []string `yaml:"complications,omitempty" json:"complications,omitempty"`
	Development    string   `yaml:"development,omitempty" json:"development,omitempty"`
}

// Pregnancy is one obstetric history entry, in chronological order
type Pregnancy struct {
	Date          string   `yaml:"date,omitempty" json:"date,omitempty"`
	Outcome       string   `yaml:"outcome,omitempty" json:"outcome,omitempty"`
	Delivery      string   `yaml:"delivery,omitempty" json:"delivery,omitempty"`
	Complications []string `yaml:"complications,omitempty" json:"complications,omitempty"`
}

func matchName(text, name string, synonyms []string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if strings.EqualFold(text, name) {
		return true
	}
	for _, s := range synonyms {
		if strings.EqualFold(text, s) {
			return true
		}
	}
	return false
}
