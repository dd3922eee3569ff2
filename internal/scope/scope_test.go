package scope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v Value) *Value { return &v }

func TestNew_DefaultsToCurrentChiefComplaint(t *testing.T) {
	tr := New()
	assert.Equal(t, CCCurrent, tr.Scope())
	_, ok := tr.SubScope()
	assert.False(t, ok)
	assert.Empty(t, tr.Elements())
}

func TestSetScope_ClearsLowerLevels(t *testing.T) {
	tr := New()
	require.NoError(t, tr.SetSubScope(AssocSymptoms))
	tr.SetElement("nausea", ReplaceTop)

	require.NoError(t, tr.SetScope(Medications))
	assert.Equal(t, Medications, tr.Scope())
	_, ok := tr.SubScope()
	assert.False(t, ok)
	assert.Empty(t, tr.Elements())
}

func TestSetScope_RejectsSubScopeValue(t *testing.T) {
	assert.Error(t, New().SetScope(AssocSymptoms))
	assert.Error(t, New().SetSubScope(Medical))
}

func TestMustSetScope(t *testing.T) {
	tr := New()
	tr.SetElement("chest pain", ReplaceTop)
	tr.MustSetScope(Allergies)
	assert.Equal(t, Allergies, tr.Scope())
	assert.Empty(t, tr.Elements())

	assert.Panics(t, func() { tr.MustSetScope(AssocSymptoms) })
	assert.Equal(t, Allergies, tr.Scope())

	tr.MustSetSubScope(AssocSymptoms)
	v, ok := tr.SubScope()
	require.True(t, ok)
	assert.Equal(t, AssocSymptoms, v)
	assert.Panics(t, func() { tr.MustSetSubScope(Family) })
}

func TestSetSubScope_ClearsElements(t *testing.T) {
	tr := New()
	tr.SetElement("chest pain", ReplaceTop)
	require.NoError(t, tr.SetSubScope(AssocSymptoms))
	sub, ok := tr.SubScope()
	assert.True(t, ok)
	assert.Equal(t, AssocSymptoms, sub)
	assert.Empty(t, tr.Elements())
	assert.Equal(t, CCCurrent, tr.Scope())
}

func TestSetElement_Modes(t *testing.T) {
	tests := []struct {
		name  string
		start []string
		value string
		mode  Mode
		want  []string
	}{
		{"replace top on empty", nil, "a", PushNested, []string{"a"}},
		{"replace top", []string{"a", "b"}, "c", ReplaceTop, []string{"c"}},
		{"replace current", []string{"a", "b"}, "c", ReplaceCurrent, []string{"a", "c"}},
		{"replace one level up", []string{"a", "b", "c"}, "d", ReplaceOneLevelUp, []string{"a", "d"}},
		{"replace one level up single", []string{"a"}, "d", ReplaceOneLevelUp, []string{"d"}},
		{"push nested", []string{"a"}, "b", PushNested, []string{"a", "b"}},
		{"push nested same as top", []string{"a", "b"}, "b", PushNested, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := FromState(&State{Scope: Surgical, Elements: tt.start})
			tr.SetElement(tt.value, tt.mode)
			assert.Equal(t, tt.want, tr.Elements())
			assert.Equal(t, Surgical, tr.Scope(), "element writes never change scope")
		})
	}
}

func TestSetElement_KeepsSubScope(t *testing.T) {
	tr := New()
	require.NoError(t, tr.SetSubScope(AssocSymptoms))
	tr.SetElement("nausea", PushNested)
	tr.SetElement("vomiting", PushNested)
	sub, ok := tr.SubScope()
	require.True(t, ok)
	assert.Equal(t, AssocSymptoms, sub)
	assert.Equal(t, CCCurrent, tr.Scope())
}

func TestElement_Levels(t *testing.T) {
	tr := FromState(&State{Scope: CCCurrent, Elements: []string{"a", "b", "c"}})

	e, ok := tr.Element(Bottom)
	assert.True(t, ok)
	assert.Equal(t, "a", e)

	e, _ = tr.Element(Current)
	assert.Equal(t, "c", e)

	e, _ = tr.Element(ParentOfCurrent)
	assert.Equal(t, "b", e)

	single := FromState(&State{Scope: CCCurrent, Elements: []string{"a"}})
	_, ok = single.Element(ParentOfCurrent)
	assert.False(t, ok)

	_, ok = New().Element(Current)
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	tr := FromState(&State{Scope: CCCurrent, SubScope: ptr(AssocSymptoms), Elements: []string{"nausea"}})

	assert.True(t, tr.Match(Query{Scope: ptr(CCCurrent)}))
	assert.False(t, tr.Match(Query{Scope: ptr(Medical)}))
	assert.True(t, tr.Match(Query{Scope: ptr(CCCurrent), SubScope: ptr(AssocSymptoms)}))
	assert.True(t, tr.Match(Query{Scope: ptr(CCCurrent), SubScope: ptr(AssocSymptoms), Elements: []string{"Nausea"}}))
	assert.False(t, tr.Match(Query{Scope: ptr(CCCurrent), Elements: []string{"nausea"}}),
		"with a sub-scope set the element compares together with it")
	assert.False(t, tr.Match(Query{}))

	flat := FromState(&State{Scope: Medications, Elements: []string{"aspirin"}})
	assert.True(t, flat.Match(Query{Scope: ptr(Medications), Elements: []string{"aspirin"}}))
	assert.False(t, flat.Match(Query{Scope: ptr(Medications), Elements: []string{"ibuprofen"}}))
}

func TestState_RoundTrip(t *testing.T) {
	tr := New()
	require.NoError(t, tr.SetScope(CCPrevious))
	require.NoError(t, tr.SetSubScope(AssocSymptoms))
	tr.SetElement("headache", ReplaceTop)
	tr.SetElement("photophobia", PushNested)

	data, err := json.Marshal(tr.State())
	require.NoError(t, err)

	var restored State
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, tr.State(), FromState(&restored).State())
}

func TestState_IsDetached(t *testing.T) {
	tr := FromState(&State{Scope: Surgical, Elements: []string{"appendectomy"}})
	s := tr.State()
	s.Elements[0] = "changed"
	e, _ := tr.Element(Current)
	assert.Equal(t, "appendectomy", e)
}

func TestState_String(t *testing.T) {
	s := State{Scope: CCCurrent, SubScope: ptr(AssocSymptoms), Elements: []string{"a", "b"}}
	assert.Equal(t, "cc_current/assoc_symptoms/a>b", s.String())
	assert.Equal(t, "medical", State{Scope: Medical}.String())
}
