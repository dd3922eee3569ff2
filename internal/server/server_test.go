package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/classifier"
	"github.com/ppiankov/patientsim/internal/dialog"
	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/pipeline"
	"github.com/ppiankov/patientsim/internal/store"
)

// fakeConversations returns err from every call when set
type fakeConversations struct {
	err      error
	lastText string
}

func (f *fakeConversations) StartConversation(_ context.Context, req pipeline.StartRequest) (*pipeline.TurnResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.TurnResult{ConversationID: "c1", Reply: "hi " + req.UserName}, nil
}

func (f *fakeConversations) HandleTurn(_ context.Context, id, text string) (*pipeline.TurnResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastText = text
	return &pipeline.TurnResult{ConversationID: id, Reply: "echo", Position: model.PositionInterview}, nil
}

func (f *fakeConversations) Transcript(context.Context, string) ([]model.TurnEntry, error) {
	return nil, f.err
}

func (f *fakeConversations) Patients() ([]patient.Summary, error) {
	return []patient.Summary{{ID: "p1", Category: "cardiology"}}, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, New(&fakeConversations{}, nil).Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateConversation(t *testing.T) {
	h := New(&fakeConversations{}, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/conversations", `{"user_name":"Jane"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res pipeline.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "c1", res.ConversationID)
	assert.Equal(t, "hi Jane", res.Reply)

	rec = do(t, h, http.MethodPost, "/api/conversations", "")
	assert.Equal(t, http.StatusCreated, rec.Code, "empty body is allowed")

	rec = do(t, h, http.MethodPost, "/api/conversations", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessage(t *testing.T) {
	fake := &fakeConversations{}
	h := New(fake, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/conversations/c1/messages", `{"text":"how old are you"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "how old are you", fake.lastText)
	assert.Contains(t, rec.Body.String(), `"position":1`)

	rec = do(t, h, http.MethodPost, "/api/conversations/c1/messages", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/conversations/c1/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pipeline.ErrBusy, http.StatusConflict},
		{store.ErrNotFound, http.StatusNotFound},
		{patient.ErrUnknownPatient, http.StatusNotFound},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := New(&fakeConversations{err: tt.err}, nil).Handler()
			rec := do(t, h, http.MethodPost, "/api/conversations/c1/messages", `{"text":"hello"}`)
			assert.Equal(t, tt.want, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestListPatients(t *testing.T) {
	rec := do(t, New(&fakeConversations{}, nil).Handler(), http.MethodGet, "/api/patients", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []patient.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)
}

func TestTranscript_Empty(t *testing.T) {
	rec := do(t, New(&fakeConversations{}, nil).Handler(), http.MethodGet, "/api/conversations/c1/transcript", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestEndToEnd(t *testing.T) {
	p := pipeline.NewPipeline(pipeline.Deps{
		Store: store.NewCacheStore(cache.NewMemoryCache(time.Hour, time.Minute), time.Hour),
		Classifier: classifier.NewScripted(map[string]*nlu.Prediction{
			"Hello there": {TopIntent: nlu.Intent{Name: dialog.IntentGreeting, Score: 0.9}},
		}, nil),
		Patients: patient.NewCatalog("../../patients", cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil),
	})
	srv := httptest.NewServer(New(p, nil).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/conversations", "application/json",
		strings.NewReader(`{"patient_id":"chest-pain-01","user_name":"Jane Doe"}`))
	require.NoError(t, err)
	var started pipeline.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.PositionInterview, started.Position)

	resp, err = http.Post(srv.URL+"/api/conversations/"+started.ConversationID+"/messages", "application/json",
		strings.NewReader(`{"text":"Hello there"}`))
	require.NoError(t, err)
	var turn pipeline.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turn))
	_ = resp.Body.Close()
	assert.Equal(t, "Hello, Jane", turn.Reply)

	resp, err = http.Get(srv.URL + "/api/conversations/" + started.ConversationID + "/transcript")
	require.NoError(t, err)
	var turns []model.TurnEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turns))
	_ = resp.Body.Close()
	require.Len(t, turns, 1)
	assert.Equal(t, "Hello there", turns[0].Query)

	resp, err = http.Get(srv.URL + "/api/conversations/missing/transcript")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&fakeConversations{}, nil).ListenAndServe(ctx, model.ServerConfig{Addr: "127.0.0.1:0", H2C: true})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
