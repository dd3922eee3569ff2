package resolve

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/scope"
)

var (
	previousQualifiers = []string{"first", "earliest", "previous", "prior", "before"}
	earliestQualifiers = []string{"first", "earliest"}
	currentQualifiers  = []string{"current", "currently", "now", "most recent", "this time", "today"}
	episodeWords       = []string{"time", "episode", "instance"}
)

// episodePrefix marks the bottom element that pins a previous episode
const episodePrefix = "episode "

type episodePick int

const (
	pinnedEpisode episodePick = iota
	earliestEpisode
	latestEpisode
)

// Located is the symptom a history-of-present-illness turn addresses
type Located struct {
	// Symptom is nil when the previous-episode scope is open but the
	// patient never had an earlier episode
	Symptom *patient.Symptom
	// Previous is set when the symptom belongs to an earlier episode
	Previous bool
	// Unknown is a symptom the turn named that appears nowhere in the
	// addressed symptom tree
	Unknown string
}

// LocateSymptom resolves which symptom the turn is about, moving the tracker
// in or out of the associated-symptom nesting as needed
func LocateSymptom(query string, es nlu.Entities, tr *scope.Tracker, r *patient.Record) Located {
	// 1. HPI questions always live in one of the chief complaint scopes
	if !tr.IsAny(scope.CCCurrent, scope.CCPrevious) {
		tr.MustSetScope(scope.CCCurrent)
	}

	// 2. Time qualifiers switch between the current and earlier episodes
	qualifiers := es.Match(nlu.TypeTimeQualifier)
	switch {
	case asksPrevious(query, es) && !tr.Is(scope.CCPrevious):
		tr.MustSetScope(scope.CCPrevious)
	case qualifiers.Has("", currentQualifiers...) && !tr.Is(scope.CCCurrent):
		tr.MustSetScope(scope.CCCurrent)
	}

	pick := pinnedEpisode
	switch {
	case qualifiers.Has("", earliestQualifiers...):
		pick = earliestEpisode
	case asksLast(query, es):
		pick = latestEpisode
	}

	loc := Located{Previous: tr.Is(scope.CCPrevious)}
	root := episodeRoot(tr, r, pick)
	if root == nil {
		return loc
	}

	// 3. Keep the most specific symptom mentions
	mentions := specificSymptoms(es.Match(nlu.TypeSymptom))

	// 4./5. Pick the referent and refocus on it
	var target *nlu.Entity
	switch len(mentions) {
	case 0:
	case 1:
		target = &mentions[0]
	default:
		target = nearestAfterPreposition(mentions, es.Match(nlu.TypePreposition))
	}
	if target != nil {
		if !focus(tr, root, nlu.Normalize(target.Text)) {
			loc.Unknown = nlu.Normalize(target.Text)
		}
	}

	// 6. Whatever the tracker now points at
	path := walk(tr, root)
	loc.Symptom = path[len(path)-1]
	return loc
}

// FocusAnywhere searches the whole current chief complaint tree for the
// symptom named text and, when found, points the tracker at it
func FocusAnywhere(tr *scope.Tracker, r *patient.Record, text string) *patient.Symptom {
	root := &r.ChiefComplaint
	if root.Matches(text) {
		tr.MustSetScope(scope.CCCurrent)
		return root
	}
	path := search(root, text)
	if path == nil {
		return nil
	}
	tr.MustSetScope(scope.CCCurrent)
	tr.MustSetSubScope(scope.AssocSymptoms)
	for _, s := range path {
		tr.SetElement(s.Name, scope.PushNested)
	}
	return path[len(path)-1]
}

// search returns the chain of associated symptoms leading to text, breadth first
func search(root *patient.Symptom, text string) []*patient.Symptom {
	type node struct {
		s    *patient.Symptom
		path []*patient.Symptom
	}
	queue := []node{{s: root}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for i := range n.s.Associated {
			child := &n.s.Associated[i]
			path := append(append([]*patient.Symptom(nil), n.path...), child)
			if child.Matches(text) {
				return path
			}
			queue = append(queue, node{s: child, path: path})
		}
	}
	return nil
}

func asksPrevious(query string, es nlu.Entities) bool {
	return es.Has(nlu.TypeTimeQualifier, previousQualifiers...) || asksLast(query, es)
}

// asksLast tells "the last time" apart from "how long does it last"
func asksLast(query string, es nlu.Entities) bool {
	return nlu.NextWordAfter(query, es, "last", episodeWords, nlu.TypeTimeQualifier)
}

// episodeRoot returns the symptom tree the tracker addresses. In the
// previous-episode scope the chosen episode is pinned at the bottom of the
// element stack so that follow-up turns stay on it; a turn without a pinned
// episode gets the most recent one.
func episodeRoot(tr *scope.Tracker, r *patient.Record, pick episodePick) *patient.Symptom {
	if !tr.Is(scope.CCPrevious) {
		return &r.ChiefComplaint
	}
	n := len(r.PreviousEpisodes)
	if n == 0 {
		return nil
	}
	i, ok := pinned(tr, n)
	want := i
	switch {
	case pick == earliestEpisode:
		want = 0
	case pick == latestEpisode || !ok:
		want = n - 1
	}
	if !ok || want != i {
		tr.ClearSubScope()
		tr.SetElement(episodeKey(want), scope.ReplaceTop)
	}
	return &r.PreviousEpisodes[want]
}

// episodeKey names the i-th previous episode, counting from one
func episodeKey(i int) string { return episodePrefix + strconv.Itoa(i+1) }

// pinned returns the index of the episode pinned on the tracker, if it is
// one of the n episodes the patient has
func pinned(tr *scope.Tracker, n int) (int, bool) {
	el, ok := marker(tr)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(el, episodePrefix))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// marker returns the raw episode element at the bottom of the stack
func marker(tr *scope.Tracker) (string, bool) {
	if !tr.Is(scope.CCPrevious) {
		return "", false
	}
	el, ok := tr.Element(scope.Bottom)
	if !ok || !strings.HasPrefix(el, episodePrefix) {
		return "", false
	}
	return el, true
}

// base is the number of stack entries below the associated-symptom chain
func base(tr *scope.Tracker) int {
	if _, ok := marker(tr); ok {
		return 1
	}
	return 0
}

// openNesting enters the associated-symptom sub-scope, keeping a pinned episode
func openNesting(tr *scope.Tracker) {
	el, ok := marker(tr)
	tr.MustSetSubScope(scope.AssocSymptoms)
	if ok {
		tr.SetElement(el, scope.ReplaceTop)
	}
}

// closeNesting leaves the associated-symptom sub-scope, keeping a pinned episode
func closeNesting(tr *scope.Tracker) {
	el, ok := marker(tr)
	tr.ClearSubScope()
	if ok {
		tr.SetElement(el, scope.ReplaceTop)
	}
}

// walk follows the element stack from root and returns every symptom on the
// way, root first. A stale stack is cut back to its last valid entry.
func walk(tr *scope.Tracker, root *patient.Symptom) []*patient.Symptom {
	path := []*patient.Symptom{root}
	if _, ok := tr.SubScope(); !ok {
		return path
	}
	for i, el := range tr.Elements()[base(tr):] {
		next := path[len(path)-1].FindAssociated(el)
		if next == nil {
			truncate(tr, i)
			break
		}
		path = append(path, next)
	}
	return path
}

// truncate keeps the first n associated symptoms of the stack
func truncate(tr *scope.Tracker, n int) {
	if n == 0 {
		closeNesting(tr)
		return
	}
	for depth := tr.Depth(); depth > base(tr)+n; depth-- {
		parent, _ := tr.Element(scope.ParentOfCurrent)
		tr.SetElement(parent, scope.ReplaceOneLevelUp)
	}
}

// focus moves the tracker onto the symptom named text. It reports false when
// text is not part of the symptom tree reachable from the current position.
func focus(tr *scope.Tracker, root *patient.Symptom, text string) bool {
	path := walk(tr, root)
	depth := len(path) - 1
	current := path[depth]

	if root.Matches(text) {
		// Stay when the open nested symptom goes by the same name, or dive
		// into its own associated symptom of that name
		if depth > 0 {
			if current.Matches(text) {
				return true
			}
			if a := current.FindAssociated(text); a != nil {
				tr.SetElement(a.Name, scope.PushNested)
				return true
			}
		}
		closeNesting(tr)
		return true
	}

	if current.Matches(text) {
		return true
	}

	if a := current.FindAssociated(text); a != nil {
		if depth == 0 {
			openNesting(tr)
		}
		tr.SetElement(a.Name, scope.PushNested)
		return true
	}

	// Sibling, uncle or further up: unwind to the ancestor that knows it
	for lvl := depth - 1; lvl >= 0; lvl-- {
		if path[lvl].Matches(text) {
			truncate(tr, lvl)
			return true
		}
		a := path[lvl].FindAssociated(text)
		if a == nil {
			continue
		}
		for up := depth - 1 - lvl; up > 0; up-- {
			tr.SetElement(a.Name, scope.ReplaceOneLevelUp)
		}
		tr.SetElement(a.Name, scope.ReplaceCurrent)
		return true
	}
	return false
}

// specificSymptoms removes duplicate mentions and single-word mentions that
// are part of a longer mention in the same turn ("pain" in "chest pain")
func specificSymptoms(es nlu.Entities) nlu.Entities {
	seen := make(map[string]bool)
	var uniq nlu.Entities
	for _, e := range es {
		key := nlu.Normalize(e.Text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, e)
	}

	var out nlu.Entities
	for _, e := range uniq {
		text := nlu.Normalize(e.Text)
		if !strings.Contains(text, " ") && subsumed(text, uniq) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func subsumed(word string, es nlu.Entities) bool {
	for _, other := range es {
		o := nlu.Normalize(other.Text)
		if o != word && strings.Contains(o, " ") && strings.Contains(o, word) {
			return true
		}
	}
	return false
}

// nearestAfterPreposition picks the symptom closest after a preposition
// ("is the nausea worse with the pain"), falling back to the first mention
func nearestAfterPreposition(symptoms, preps nlu.Entities) *nlu.Entity {
	sorted := append(nlu.Entities(nil), symptoms...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	best := -1
	bestDist := 0
	for _, p := range preps {
		for i, s := range sorted {
			if s.Start <= p.End {
				continue
			}
			if d := s.Start - p.End; best < 0 || d < bestDist {
				best, bestDist = i, d
			}
			break
		}
	}
	if best < 0 {
		first := symptoms[0]
		return &first
	}
	return &sorted[best]
}
