package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/patientsim/internal/nlu"
)

// Conversation is the part of the turn pipeline a replay drives
type Conversation interface {
	// Open starts a conversation with a patient and returns its id and the
	// introductory message
	Open(ctx context.Context, patientID, userName string) (string, string, error)

	// Say sends one user message and returns the reply
	Say(ctx context.Context, conversationID, text string) (string, error)
}

// Script is a scripted interview with a patient case
type Script struct {
	Name     string       `yaml:"name"`
	Patient  string       `yaml:"patient"`
	UserName string       `yaml:"user_name,omitempty"`
	Turns    []ScriptTurn `yaml:"turns"`
}

// ScriptTurn is one user message. Intent and Entities, when present, pin the
// classification of the message so the replay runs without the service.
type ScriptTurn struct {
	Say      string         `yaml:"say"`
	Intent   string         `yaml:"intent,omitempty"`
	Entities []ScriptEntity `yaml:"entities,omitempty"`
	Expect   string         `yaml:"expect,omitempty"`
}

// ScriptEntity is a pinned entity; offsets are located in the message text
type ScriptEntity struct {
	Text string `yaml:"text"`
	Type string `yaml:"type"`
}

// Predictions collects the pinned classifications of scripts, keyed by
// message text. A later script wins when two pin the same text.
func Predictions(scripts ...*Script) map[string]*nlu.Prediction {
	out := make(map[string]*nlu.Prediction)
	for _, s := range scripts {
		for _, t := range s.Turns {
			if t.Intent == "" {
				continue
			}
			p := &nlu.Prediction{TopIntent: nlu.Intent{Name: t.Intent, Score: 1}}
			for _, e := range t.Entities {
				p.Entities = append(p.Entities, nlu.Entity{Text: e.Text, Type: e.Type, Score: 1})
			}
			out[t.Say] = p
		}
	}
	return out
}

// TurnOutcome is the reply to one scripted message
type TurnOutcome struct {
	Say    string
	Reply  string
	Expect string
	Error  error
}

// Matched reports whether the reply is the expected one, when one is set
func (o TurnOutcome) Matched() bool {
	return o.Error == nil && (o.Expect == "" || o.Expect == o.Reply)
}

// ReplayJob replays one script
type ReplayJob struct {
	Script       *Script
	Conversation Conversation
}

// Execute runs every turn of the script in order
func (j *ReplayJob) Execute(ctx context.Context) Result {
	res := &ReplayResult{Script: j.Script.Name}

	id, intro, err := j.Conversation.Open(ctx, j.Script.Patient, j.Script.UserName)
	if err != nil {
		res.Error = fmt.Errorf("open conversation: %w", err)
		return res
	}
	res.ConversationID = id
	res.Intro = intro

	for _, t := range j.Script.Turns {
		reply, err := j.Conversation.Say(ctx, id, t.Say)
		res.Turns = append(res.Turns, TurnOutcome{Say: t.Say, Reply: reply, Expect: t.Expect, Error: err})
		if ctx.Err() != nil {
			res.Error = ctx.Err()
			return res
		}
	}
	return res
}

// ReplayResult is the outcome of one script
type ReplayResult struct {
	Script         string
	ConversationID string
	Intro          string
	Turns          []TurnOutcome
	Error          error
}

// GetError returns the error that stopped the replay
func (r *ReplayResult) GetError() error {
	return r.Error
}

// Mismatches counts turns whose reply differs from the expectation
func (r *ReplayResult) Mismatches() int {
	n := 0
	for _, t := range r.Turns {
		if !t.Matched() {
			n++
		}
	}
	return n
}

// Passed reports whether the script ran to the end with every expectation met
func (r *ReplayResult) Passed() bool {
	return r.Error == nil && r.Mismatches() == 0
}

// Replayer runs scripts concurrently, one conversation per script
type Replayer struct {
	conversation Conversation
	concurrency  int
}

// NewReplayer creates a new replayer
func NewReplayer(conversation Conversation, concurrency int) *Replayer {
	return &Replayer{
		conversation: conversation,
		concurrency:  concurrency,
	}
}

// Run replays scripts and returns their results in script order
func (r *Replayer) Run(ctx context.Context, scripts []*Script) []*ReplayResult {
	if len(scripts) == 0 {
		return []*ReplayResult{}
	}

	pool := NewPool(ctx, r.concurrency)
	pool.Start()

	for _, s := range scripts {
		pool.Submit(&ReplayJob{Script: s, Conversation: r.conversation})
	}

	results := pool.Wait()

	out := make([]*ReplayResult, len(results))
	for i, result := range results {
		out[i] = result.(*ReplayResult)
	}
	return out
}

// LoadScripts reads scripts from files and directories. Directories are
// expanded to their .yaml and .yml files; each file is read once.
func LoadScripts(paths []string) ([]*Script, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}

	scripts := make([]*Script, 0, len(files))
	for _, f := range files {
		s, err := LoadScript(f)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// LoadScript reads one YAML script. The file name is used when the script
// has no name.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if len(s.Turns) == 0 {
		return nil, fmt.Errorf("script %s has no turns", path)
	}
	for i, t := range s.Turns {
		if strings.TrimSpace(t.Say) == "" {
			return nil, fmt.Errorf("script %s: turn %d is empty", path, i+1)
		}
	}
	return &s, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat script path: %w", err)
		}
		if !info.IsDir() {
			add(filepath.Clean(p))
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read script dir: %w", err)
		}
		var names []string
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			add(filepath.Join(p, n))
		}
	}
	return files, nil
}
