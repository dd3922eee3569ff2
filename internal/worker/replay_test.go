package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockConversation echoes every message back
type mockConversation struct {
	mu       sync.Mutex
	opened   int
	failOpen bool
	failSay  string
}

func (m *mockConversation) Open(ctx context.Context, patientID, userName string) (string, string, error) {
	if m.failOpen {
		return "", "", errors.New("unknown patient")
	}
	m.mu.Lock()
	m.opened++
	id := fmt.Sprintf("conv-%d", m.opened)
	m.mu.Unlock()
	return id, "Your patient is " + patientID + ".", nil
}

func (m *mockConversation) Say(ctx context.Context, conversationID, text string) (string, error) {
	time.Sleep(5 * time.Millisecond) // Simulate work
	if text == m.failSay {
		return "", errors.New("store unavailable")
	}
	return "echo: " + text, nil
}

func TestReplayer_Run(t *testing.T) {
	conv := &mockConversation{}
	replayer := NewReplayer(conv, 2)

	scripts := []*Script{
		{Name: "a", Patient: "p1", Turns: []ScriptTurn{{Say: "hello", Expect: "echo: hello"}, {Say: "how old are you"}}},
		{Name: "b", Patient: "p2", Turns: []ScriptTurn{{Say: "hi", Expect: "something else"}}},
		{Name: "c", Patient: "p3", Turns: []ScriptTurn{{Say: "bye"}}},
	}

	results := replayer.Run(context.Background(), scripts)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, name := range []string{"a", "b", "c"} {
		if results[i].Script != name {
			t.Errorf("result %d: expected script %s, got %s", i, name, results[i].Script)
		}
	}

	if !results[0].Passed() {
		t.Errorf("script a should pass: %+v", results[0])
	}
	if results[0].Intro != "Your patient is p1." {
		t.Errorf("unexpected intro %q", results[0].Intro)
	}
	if len(results[0].Turns) != 2 || results[0].Turns[1].Reply != "echo: how old are you" {
		t.Errorf("unexpected turns: %+v", results[0].Turns)
	}

	if results[1].Passed() || results[1].Mismatches() != 1 {
		t.Errorf("script b should report one mismatch, got %d", results[1].Mismatches())
	}

	if conv.opened != 3 {
		t.Errorf("expected 3 conversations, got %d", conv.opened)
	}
}

func TestReplayer_Run_Empty(t *testing.T) {
	results := NewReplayer(&mockConversation{}, 2).Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReplayer_Run_Errors(t *testing.T) {
	script := &Script{Name: "a", Patient: "p", Turns: []ScriptTurn{{Say: "hello"}, {Say: "boom"}}}

	results := NewReplayer(&mockConversation{failOpen: true}, 1).Run(context.Background(), []*Script{script})
	if results[0].GetError() == nil {
		t.Error("expected open error")
	}

	results = NewReplayer(&mockConversation{failSay: "boom"}, 1).Run(context.Background(), []*Script{script})
	if results[0].GetError() != nil {
		t.Errorf("turn errors do not stop the replay: %v", results[0].GetError())
	}
	if results[0].Turns[1].Error == nil || results[0].Turns[1].Matched() {
		t.Error("failed turn should be reported")
	}
	if results[0].Passed() {
		t.Error("script with a failed turn should not pass")
	}
}

func TestPredictions(t *testing.T) {
	s := &Script{Turns: []ScriptTurn{
		{Say: "hello"},
		{Say: "What medications do you take?", Intent: "GetMedications", Entities: []ScriptEntity{{Text: "what", Type: "query"}}},
	}}

	p := Predictions(s)
	if len(p) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(p))
	}
	got := p["What medications do you take?"]
	if got == nil || got.TopIntent.Name != "GetMedications" {
		t.Fatalf("unexpected prediction %+v", got)
	}
	if len(got.Entities) != 1 || got.Entities[0].Type != "query" {
		t.Errorf("unexpected entities %+v", got.Entities)
	}
}

func TestLoadScripts(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write script: %v", err)
		}
		return path
	}

	b := write("b.yaml", `
patient: chest-pain-01
user_name: Jane Doe
turns:
  - say: hello
    intent: Greeting
    expect: Hello, Jane
`)
	write("a.yml", `
name: named
patient: p
turns:
  - say: hi
`)
	write("notes.txt", "not a script")

	scripts, err := LoadScripts([]string{dir, b})
	if err != nil {
		t.Fatalf("LoadScripts failed: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("expected 2 scripts, got %d", len(scripts))
	}
	if scripts[0].Name != "named" {
		t.Errorf("expected sorted order, got %s first", scripts[0].Name)
	}
	if scripts[1].Name != "b" || scripts[1].UserName != "Jane Doe" || scripts[1].Turns[0].Expect != "Hello, Jane" {
		t.Errorf("unexpected script %+v", scripts[1])
	}

	empty := write("empty.yaml", "name: x\nturns: []\n")
	if _, err := LoadScript(empty); err == nil || !strings.Contains(err.Error(), "no turns") {
		t.Errorf("expected no turns error, got %v", err)
	}

	if _, err := LoadScripts([]string{filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for missing path")
	}
}
