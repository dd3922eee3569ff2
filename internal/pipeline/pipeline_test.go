package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/classifier"
	"github.com/ppiankov/patientsim/internal/dialog"
	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/scope"
	"github.com/ppiankov/patientsim/internal/store"
)

const intro = "Your patient is Robert Hall, a 58 year-old male complaining of chest pain."

func q(text string) nlu.Entity {
	return nlu.Entity{Text: text, Type: nlu.TypeQuery}
}

var predictions = map[string]*nlu.Prediction{
	"hello": {TopIntent: nlu.Intent{Name: dialog.IntentGreeting, Score: 0.98}},
	"What medications do you take?": {
		TopIntent: nlu.Intent{Name: dialog.IntentGetMedications, Score: 0.9},
		Intents: []nlu.Intent{
			{Name: dialog.IntentGetMedications, Score: 0.9},
			{Name: dialog.IntentGetTreatment, Score: 0.05},
			{Name: dialog.IntentGetIndication, Score: 0.03},
			{Name: dialog.IntentNone, Score: 0.02},
		},
		Entities: nlu.Entities{q("what")},
	},
	"What do you take it for?": {
		TopIntent: nlu.Intent{Name: dialog.IntentGetIndication, Score: 0.8},
		Entities:  nlu.Entities{q("what")},
	},
	"Glucophage": {
		TopIntent: nlu.Intent{Name: dialog.IntentNone, Score: 0.6},
		Entities:  nlu.Entities{{Text: "glucophage", Type: nlu.TypeMedication}},
	},
	"How much do you take?": {
		TopIntent: nlu.Intent{Name: dialog.IntentGetQuantity, Score: 0.85},
		Entities:  nlu.Entities{q("how much")},
	},
	"wat meds": {
		AlteredQuery: "what meds",
		TopIntent:    nlu.Intent{Name: dialog.IntentGetMedications, Score: 0.7},
	},
	"explode": {TopIntent: nlu.Intent{Name: "Explode", Score: 1}},
}

type fixture struct {
	p     *Pipeline
	store store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewCacheStore(cache.NewMemoryCache(time.Hour, time.Minute), time.Hour)
	resolver := dialog.NewResolver(nil)
	resolver.Register("Explode", func(*dialog.Context) (string, error) { panic("boom") })

	p := NewPipeline(Deps{
		Store:      st,
		Classifier: classifier.NewScripted(predictions, nil),
		Patients:   patient.NewCatalog("../../patients", cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil),
		Resolver:   resolver,
	})
	return &fixture{p: p, store: st}
}

func (f *fixture) say(t *testing.T, id, text string) *TurnResult {
	t.Helper()
	res, err := f.p.HandleTurn(context.Background(), id, text)
	require.NoError(t, err)
	return res
}

func (f *fixture) startCase(t *testing.T) string {
	t.Helper()
	res, err := f.p.StartConversation(context.Background(), StartRequest{PatientID: "chest-pain-01", UserName: "Jane Doe"})
	require.NoError(t, err)
	require.Equal(t, intro, res.Reply)
	return res.ConversationID
}

func TestStartConversation_Welcome(t *testing.T) {
	f := newFixture(t)
	res, err := f.p.StartConversation(context.Background(), StartRequest{UserName: "Jane Doe"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ConversationID)
	assert.Equal(t, model.PositionNone, res.Position)
	assert.Contains(t, res.Reply, "Welcome to the Interview Bot, Jane!")
	assert.Contains(t, res.Reply, "cardiology, obstetrics, pediatrics")

	// questions before a case is chosen get the welcome again
	again := f.say(t, res.ConversationID, "how old are you")
	assert.Equal(t, res.Reply, again.Reply)

	started := f.say(t, res.ConversationID, "start chest-pain-01")
	assert.Equal(t, intro, started.Reply)
	assert.Equal(t, model.PositionInterview, started.Position)

	conv, err := f.store.GetConversation(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "chest-pain-01", conv.PatientID)
	assert.Equal(t, model.PositionInterview, conv.Position)
}

func TestStartConversation_Category(t *testing.T) {
	f := newFixture(t)
	res, err := f.p.StartConversation(context.Background(), StartRequest{Category: "pediatrics"})
	require.NoError(t, err)
	assert.Equal(t, "Your patient is Emma Lopez, a 4 year-old female complaining of fever.", res.Reply)

	res, err = f.p.StartConversation(context.Background(), StartRequest{Category: "dermatology"})
	require.NoError(t, err)
	assert.Equal(t, model.PositionNone, res.Position)
	assert.Contains(t, res.Reply, `There is no case for "dermatology".`)
}

func TestHandleTurn_Greeting(t *testing.T) {
	f := newFixture(t)
	id := f.startCase(t)

	res := f.say(t, id, "hello")
	assert.Equal(t, "Hello, Jane", res.Reply)
	assert.Equal(t, dialog.IntentGreeting, res.Handler)
	assert.Equal(t, model.PositionInterview, res.Position)

	turns, err := f.p.Transcript(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].Query)
	assert.Equal(t, "Hello, Jane", turns[0].Response)
	assert.Equal(t, dialog.IntentGreeting, turns[0].Handler)
	assert.NotEmpty(t, turns[0].ID)
}

func TestHandleTurn_MedicationClarification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startCase(t)

	res := f.say(t, id, "What medications do you take?")
	assert.Equal(t, "I take lisinopril and metformin.", res.Reply)
	require.NotNil(t, res.Scope)
	assert.Equal(t, scope.Medications, res.Scope.Scope)

	res = f.say(t, id, "What do you take it for?")
	assert.Equal(t, "Which medication are you referring to?", res.Reply)

	res = f.say(t, id, "Glucophage")
	assert.Equal(t, "I take metformin for diabetes.", res.Reply)
	assert.Equal(t, dialog.IntentGetIndication, res.Handler)
	assert.Equal(t, []string{"metformin"}, res.Scope.Elements)

	pending, err := f.store.TakeClarification(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, pending, "clarification is consumed once")

	res = f.say(t, id, "How much do you take?")
	assert.Equal(t, "I take metformin 500 mg twice a day.", res.Reply)

	turns, err := f.p.Transcript(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Len(t, turns[0].Intents, 3, "only the top three intents are logged")
}

func TestHandleTurn_AlteredQueryLogged(t *testing.T) {
	f := newFixture(t)
	id := f.startCase(t)

	res := f.say(t, id, "wat meds")
	assert.Equal(t, "I take lisinopril and metformin.", res.Reply)

	turns, err := f.p.Transcript(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "wat meds", turns[0].Query)
	assert.Equal(t, "what meds", turns[0].AlteredQuery)
}

func TestHandleTurn_ClassifierFailureLeavesScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startCase(t)

	f.say(t, id, "What medications do you take?")
	before, err := f.store.LoadScope(ctx, id)
	require.NoError(t, err)

	res := f.say(t, id, "unscripted question")
	assert.Equal(t, RephraseReply, res.Reply)

	after, err := f.store.LoadScope(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	turns, err := f.p.Transcript(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Contains(t, turns[1].Error, "classify")
	assert.Equal(t, RephraseReply, turns[1].Response)
}

func TestHandleTurn_HandlerPanicSkipsScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startCase(t)

	res := f.say(t, id, "explode")
	assert.Equal(t, RephraseReply, res.Reply)

	st, err := f.store.LoadScope(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, st, "scope is not persisted for a failed turn")

	turns, err := f.p.Transcript(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Contains(t, turns[0].Error, "boom")

	// the conversation is usable afterwards
	assert.Equal(t, "Hello, Jane", f.say(t, id, "hello").Reply)
}

func TestHandleTurn_Busy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startCase(t)

	ok, err := f.store.Block(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.p.HandleTurn(ctx, id, "hello")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, f.store.Unblock(ctx, id))
	assert.Equal(t, "Hello, Jane", f.say(t, id, "hello").Reply)

	// the lock is released after every turn
	ok, err = f.store.Block(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandleTurn_UnknownConversation(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.HandleTurn(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.p.Transcript(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleTurn_Commands(t *testing.T) {
	f := newFixture(t)
	id := f.startCase(t)

	res := f.say(t, id, "ERROR: the patient forgot his allergies")
	assert.Equal(t, IssueReply, res.Reply)
	assert.Equal(t, model.PositionInterview, res.Position)

	res = f.say(t, id, "end encounter")
	assert.Equal(t, model.PositionClosed, res.Position)
	assert.Equal(t, "The encounter with Robert Hall has ended. Type RESTART to start a new encounter.", res.Reply)

	res = f.say(t, id, "hello")
	assert.Equal(t, ClosedReply, res.Reply)

	res = f.say(t, id, "RESTART")
	assert.Equal(t, model.PositionNone, res.Position)
	assert.Contains(t, res.Reply, "Welcome to the Interview Bot")

	conv, err := f.store.GetConversation(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, conv.PatientID)
}

func TestHandleTurn_RestartClearsScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.startCase(t)

	f.say(t, id, "What medications do you take?")
	f.say(t, id, "What do you take it for?")
	f.say(t, id, "RESTART")

	st, err := f.store.LoadScope(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, st)
	pending, err := f.store.TakeClarification(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestOpenAndSay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, reply, err := f.p.Open(ctx, "chest-pain-01", "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, intro, reply)

	reply, err = f.p.Say(ctx, id, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Jane", reply)

	_, reply, err = f.p.Open(ctx, "", "")
	require.NoError(t, err)
	assert.Contains(t, reply, "Your patient is")

	_, _, err = f.p.Open(ctx, "nobody", "")
	assert.ErrorIs(t, err, patient.ErrUnknownPatient)
}

func TestIntroduce(t *testing.T) {
	r := &patient.Record{
		Name:           "Baby Lee",
		Age:            patient.Age{Value: 3, Unit: "months"},
		Gender:         "male",
		ChiefComplaint: patient.Symptom{Name: "poor feeding"},
	}
	assert.Equal(t, "Your patient is Baby Lee, a 3 month-old male complaining of poor feeding.", Introduce(r))
}

func TestIntents(t *testing.T) {
	f := newFixture(t)
	names := f.p.Intents()
	assert.Contains(t, names, dialog.IntentGreeting)
	assert.IsIncreasing(t, names)
}

// hangup cancels the caller's context while the turn is being classified
type hangup struct {
	classifier.Classifier
	cancel context.CancelFunc
}

func (h hangup) Classify(ctx context.Context, query string) (*nlu.Prediction, error) {
	h.cancel()
	return h.Classifier.Classify(ctx, query)
}

// strictStore refuses writes on a cancelled context, as network backends do
type strictStore struct {
	store.Store
}

func (s strictStore) SaveScope(ctx context.Context, id string, st *scope.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.SaveScope(ctx, id, st)
}

func (s strictStore) AppendTurn(ctx context.Context, e *model.TurnEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.AppendTurn(ctx, e)
}

func TestHandleTurn_CompletesWhenCallerCancels(t *testing.T) {
	f := newFixture(t)
	id := f.startCase(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPipeline(Deps{
		Store:      strictStore{f.store},
		Classifier: hangup{Classifier: classifier.NewScripted(predictions, nil), cancel: cancel},
		Patients:   f.p.patients,
		Resolver:   f.p.resolver,
	})

	res, err := p.HandleTurn(ctx, id, "What medications do you take?")
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, "I take lisinopril and metformin.", res.Reply)

	turns, err := p.Transcript(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, res.Reply, turns[0].Response)
	assert.Empty(t, turns[0].Error)

	state, err := f.store.LoadScope(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, scope.Medications, state.Scope)

	// the lock was released
	assert.Equal(t, "Hello, Jane", f.say(t, id, "hello").Reply)
}

func TestHandleTurn_LogsClassification(t *testing.T) {
	f := newFixture(t)
	id := f.startCase(t)

	core, logs := observer.New(zap.DebugLevel)
	p := NewPipeline(Deps{
		Store:      f.store,
		Classifier: classifier.NewScripted(predictions, nil),
		Patients:   f.p.patients,
		Resolver:   f.p.resolver,
		Log:        zap.New(core),
	})
	_, err := p.HandleTurn(context.Background(), id, "What medications do you take?")
	require.NoError(t, err)

	classified := logs.FilterMessage("classified").All()
	require.Len(t, classified, 1)
	fields := classified[0].ContextMap()
	assert.Equal(t, "What medications do you take?", fields["query"])
	assert.Equal(t, []interface{}{"what"}, fields["entities"])
	assert.Equal(t, 1, logs.FilterMessage("turn").Len())
}
