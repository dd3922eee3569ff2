// Package pipeline runs one conversation turn end to end: lock, flow
// commands, classification, scope and clarification handling, dispatch,
// persistence and the turn log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/patientsim/internal/classifier"
	"github.com/ppiankov/patientsim/internal/dialog"
	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/scope"
	"github.com/ppiankov/patientsim/internal/store"
	"github.com/ppiankov/patientsim/internal/worker"
)

// ErrBusy is returned while another turn of the same conversation runs
var ErrBusy = errors.New("conversation is busy")

// Replies sent by the pipeline itself
const (
	RephraseReply = "Sorry, I didn't understand that. Please try rephrasing your message."
	IssueReply    = "Issue has been reported. Thank you!"
	ClosedReply   = "This encounter has ended. Type RESTART to start a new encounter."
)

// Patients is the case source
type Patients interface {
	Get(id string) (*patient.Record, error)
	Pick(selector string) (*patient.Record, error)
	List() ([]patient.Summary, error)
}

// Deps are the collaborators of a Pipeline. Limiter and Log may be nil.
type Deps struct {
	Store      store.Store
	Classifier classifier.Classifier
	Patients   Patients
	Resolver   *dialog.Resolver
	Limiter    *worker.Limiter
	Log        *zap.Logger
}

// Pipeline orchestrates conversation turns
type Pipeline struct {
	store      store.Store
	classifier classifier.Classifier
	patients   Patients
	resolver   *dialog.Resolver
	limiter    *worker.Limiter
	log        *zap.Logger
}

// NewPipeline creates a pipeline from its collaborators
func NewPipeline(d Deps) *Pipeline {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Resolver == nil {
		d.Resolver = dialog.NewResolver(d.Log)
	}
	if d.Limiter == nil {
		d.Limiter = worker.NewLimiter(0, 1)
	}
	return &Pipeline{
		store:      d.Store,
		classifier: d.Classifier,
		patients:   d.Patients,
		resolver:   d.Resolver,
		limiter:    d.Limiter,
		log:        d.Log,
	}
}

// StartRequest opens a conversation. PatientID wins over Category; with
// neither the conversation waits for a START command.
type StartRequest struct {
	PatientID string `json:"patient_id,omitempty"`
	Category  string `json:"category,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// TurnResult is what one turn produces for the delivery layer
type TurnResult struct {
	ConversationID string         `json:"conversation_id"`
	Reply          string         `json:"reply"`
	Position       model.Position `json:"position"`
	Handler        string         `json:"handler,omitempty"`
	Scope          *scope.State   `json:"scope,omitempty"`
}

// StartConversation creates a conversation and, when a case is requested,
// introduces the patient
func (p *Pipeline) StartConversation(ctx context.Context, req StartRequest) (*TurnResult, error) {
	conv := &model.Conversation{ID: uuid.NewString(), UserName: strings.TrimSpace(req.UserName)}
	if err := p.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	p.log.Info("conversation started", zap.String("conversation", conv.ID))

	selector := req.PatientID
	if selector == "" {
		selector = req.Category
	}
	if selector == "" {
		reply, err := p.welcome(conv)
		if err != nil {
			return nil, err
		}
		return &TurnResult{ConversationID: conv.ID, Reply: reply, Position: conv.Position}, nil
	}
	return p.start(ctx, conv, selector)
}

// HandleTurn processes one user message. ErrBusy and store.ErrNotFound are
// the only errors a caller needs to tell apart; other failures inside the
// turn become the rephrase reply.
func (p *Pipeline) HandleTurn(ctx context.Context, conversationID, text string) (*TurnResult, error) {
	conv, err := p.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	ok, err := p.store.Block(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("block conversation: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	// once locked, the turn runs to completion even if the caller goes away,
	// so scope, clarification and the turn log stay consistent
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if err := p.store.Unblock(ctx, conversationID); err != nil {
			p.log.Error("unblock failed", zap.String("conversation", conversationID), zap.Error(err))
		}
	}()

	text = strings.TrimSpace(text)
	command := strings.ToUpper(text)

	switch {
	case command == "RESTART":
		return p.restart(ctx, conv)
	case command == "ERROR" || strings.HasPrefix(command, "ERROR:") || strings.HasPrefix(command, "ERROR "):
		return p.reportIssue(ctx, conv, strings.TrimLeft(text[len("ERROR"):], ": "))
	case command == "END ENCOUNTER" && conv.Position == model.PositionInterview:
		return p.end(ctx, conv)
	}

	switch conv.Position {
	case model.PositionNone:
		if command == "START" || strings.HasPrefix(command, "START ") {
			return p.start(ctx, conv, strings.TrimSpace(text[len("START"):]))
		}
		reply, err := p.welcome(conv)
		if err != nil {
			return nil, err
		}
		return &TurnResult{ConversationID: conv.ID, Reply: reply, Position: conv.Position}, nil
	case model.PositionClosed:
		return &TurnResult{ConversationID: conv.ID, Reply: ClosedReply, Position: conv.Position}, nil
	}

	return p.interview(ctx, conv, text)
}

// interview answers a question about the patient
func (p *Pipeline) interview(ctx context.Context, conv *model.Conversation, text string) (*TurnResult, error) {
	started := time.Now()
	result := &TurnResult{ConversationID: conv.ID, Position: conv.Position}
	entry := &model.TurnEntry{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Query:          text,
	}
	logger := p.log.With(zap.String("conversation", conv.ID))

	fail := func(stage string, err error) (*TurnResult, error) {
		logger.Error("turn failed", zap.String("stage", stage), zap.Error(err))
		entry.Error = fmt.Sprintf("%s: %v", stage, err)
		entry.Response = RephraseReply
		p.appendTurn(ctx, entry)
		result.Reply = RephraseReply
		return result, nil
	}

	if err := p.limiter.Wait(ctx, conv.ID); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	pred, err := p.classifier.Classify(ctx, text)
	if err != nil {
		return fail("classify", err)
	}
	entry.AlteredQuery = pred.AlteredQuery
	entry.Intents = pred.TopIntents(3)
	entry.Entities = pred.Entities
	logger.Debug("classified",
		zap.String("query", text),
		zap.Strings("intents", topIntentNames(entry.Intents)),
		zap.Strings("entities", pred.Entities.Texts()),
	)

	query := text
	if pred.AlteredQuery != "" {
		query = pred.AlteredQuery
	}

	record, err := p.patients.Get(conv.PatientID)
	if err != nil {
		return fail("load patient", err)
	}
	state, err := p.store.LoadScope(ctx, conv.ID)
	if err != nil {
		return fail("load scope", err)
	}
	pending, err := p.store.TakeClarification(ctx, conv.ID)
	if err != nil {
		return fail("take clarification", err)
	}

	tracker := scope.FromState(state)
	before := tracker.State()
	turn := &dialog.Turn{Query: query, Intent: pred.TopIntent, Entities: pred.Entities}
	dialog.ApplyClarification(pending, turn)

	res, err := p.resolver.Resolve(&dialog.Context{
		Turn:     turn,
		Scope:    tracker,
		Patient:  record,
		UserName: conv.UserName,
	})
	entry.Handler = res.Handler
	if err != nil {
		return fail("resolve", err)
	}

	after := tracker.State()
	if err := p.store.SaveScope(ctx, conv.ID, &after); err != nil {
		return fail("save scope", err)
	}
	if res.Clarification != nil {
		if err := p.store.SetClarification(ctx, conv.ID, res.Clarification); err != nil {
			return fail("set clarification", err)
		}
	}

	entry.Response = res.Text
	p.appendTurn(ctx, entry)

	logger.Info("turn",
		zap.String("intent", turn.Intent.Name),
		zap.Float64("score", turn.Intent.Score),
		zap.Int("entities", len(turn.Entities)),
		zap.Bool("resumed", turn.Resumed),
		zap.Stringer("scope_before", before),
		zap.Stringer("scope_after", after),
		zap.Duration("latency", time.Since(started)),
	)

	result.Reply = res.Text
	result.Handler = res.Handler
	result.Scope = &after
	return result, nil
}

func (p *Pipeline) appendTurn(ctx context.Context, entry *model.TurnEntry) {
	entry.CreatedAt = time.Now().UTC()
	if err := p.store.AppendTurn(ctx, entry); err != nil {
		p.log.Warn("turn log write failed", zap.String("conversation", entry.ConversationID), zap.Error(err))
	}
}

// start selects a case and introduces the patient
func (p *Pipeline) start(ctx context.Context, conv *model.Conversation, selector string) (*TurnResult, error) {
	record, err := p.patients.Pick(selector)
	if err != nil {
		if errors.Is(err, patient.ErrUnknownPatient) {
			reply, werr := p.welcome(conv)
			if werr != nil {
				return nil, werr
			}
			return &TurnResult{
				ConversationID: conv.ID,
				Reply:          fmt.Sprintf("There is no case for %q. %s", selector, reply),
				Position:       conv.Position,
			}, nil
		}
		return nil, fmt.Errorf("pick patient: %w", err)
	}

	if err := p.reset(ctx, conv.ID); err != nil {
		return nil, err
	}
	conv.PatientID = record.ID
	conv.Position = model.PositionInterview
	if err := p.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	p.log.Info("case selected", zap.String("conversation", conv.ID), zap.String("patient", record.ID))

	return &TurnResult{ConversationID: conv.ID, Reply: Introduce(record), Position: conv.Position}, nil
}

// restart drops the case and returns to case selection
func (p *Pipeline) restart(ctx context.Context, conv *model.Conversation) (*TurnResult, error) {
	if err := p.reset(ctx, conv.ID); err != nil {
		return nil, err
	}
	conv.PatientID = ""
	conv.Position = model.PositionNone
	if err := p.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	p.limiter.Forget(conv.ID)

	reply, err := p.welcome(conv)
	if err != nil {
		return nil, err
	}
	return &TurnResult{ConversationID: conv.ID, Reply: reply, Position: conv.Position}, nil
}

// end closes the encounter
func (p *Pipeline) end(ctx context.Context, conv *model.Conversation) (*TurnResult, error) {
	conv.Position = model.PositionClosed
	if err := p.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	p.limiter.Forget(conv.ID)
	p.log.Info("encounter closed", zap.String("conversation", conv.ID), zap.String("patient", conv.PatientID))

	reply := "The encounter has ended. Type RESTART to start a new encounter."
	if record, err := p.patients.Get(conv.PatientID); err == nil {
		reply = fmt.Sprintf("The encounter with %s has ended. Type RESTART to start a new encounter.", record.Name)
	}
	return &TurnResult{ConversationID: conv.ID, Reply: reply, Position: conv.Position}, nil
}

func (p *Pipeline) reportIssue(ctx context.Context, conv *model.Conversation, message string) (*TurnResult, error) {
	issue := model.Issue{ConversationID: conv.ID, Message: message, CreatedAt: time.Now().UTC()}
	if err := p.store.ReportIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("report issue: %w", err)
	}
	p.log.Warn("issue reported", zap.String("conversation", conv.ID), zap.String("message", message))
	return &TurnResult{ConversationID: conv.ID, Reply: IssueReply, Position: conv.Position}, nil
}

// reset clears scope and any pending clarification
func (p *Pipeline) reset(ctx context.Context, id string) error {
	if err := p.store.SaveScope(ctx, id, nil); err != nil {
		return fmt.Errorf("clear scope: %w", err)
	}
	if err := p.store.SetClarification(ctx, id, nil); err != nil {
		return fmt.Errorf("clear clarification: %w", err)
	}
	return nil
}

// welcome lists the ways to start an encounter
func (p *Pipeline) welcome(conv *model.Conversation) (string, error) {
	list, err := p.patients.List()
	if err != nil {
		return "", fmt.Errorf("list patients: %w", err)
	}
	seen := make(map[string]bool)
	var categories []string
	for _, s := range list {
		if s.Category != "" && !seen[s.Category] {
			seen[s.Category] = true
			categories = append(categories, s.Category)
		}
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Welcome to the Interview Bot")
	if fields := strings.Fields(conv.UserName); len(fields) > 0 {
		b.WriteString(", " + fields[0])
	}
	b.WriteString("!\n")
	b.WriteString("Type START for a random case")
	if len(categories) > 0 {
		fmt.Fprintf(&b, ", START <specialty> for a case in one specialty (%s)", strings.Join(categories, ", "))
	}
	b.WriteString(" or START <case id> for a specific case.\n")
	b.WriteString("Type RESTART at any time to start a new encounter.\n")
	b.WriteString("Type END ENCOUNTER when you're ready to end the interview.\n")
	b.WriteString("Type ERROR: followed by a message to report an issue.")
	return b.String(), nil
}

// Introduce returns the message that begins an encounter
func Introduce(r *patient.Record) string {
	return fmt.Sprintf("Your patient is %s, a %d %s-old %s complaining of %s.",
		r.Name, r.Age.Value, r.Age.UnitName(), r.Gender, r.ChiefComplaint.Name)
}

// Transcript returns the turn log of a conversation
func (p *Pipeline) Transcript(ctx context.Context, conversationID string) ([]model.TurnEntry, error) {
	if _, err := p.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return p.store.Turns(ctx, conversationID)
}

// Patients returns the case listing
func (p *Pipeline) Patients() ([]patient.Summary, error) {
	return p.patients.List()
}

// Intents returns the intent names the resolver answers
func (p *Pipeline) Intents() []string {
	names := p.resolver.Intents()
	sort.Strings(names)
	return names
}

// Open starts a conversation with a case; an empty patient id picks a
// random one
func (p *Pipeline) Open(ctx context.Context, patientID, userName string) (string, string, error) {
	res, err := p.StartConversation(ctx, StartRequest{PatientID: patientID, UserName: userName})
	if err != nil {
		return "", "", err
	}
	if res.Position != model.PositionInterview {
		if patientID != "" {
			return "", "", fmt.Errorf("open %q: %w", patientID, patient.ErrUnknownPatient)
		}
		if res, err = p.HandleTurn(ctx, res.ConversationID, "START"); err != nil {
			return "", "", err
		}
	}
	return res.ConversationID, res.Reply, nil
}

// Say sends one message and returns the reply text
func (p *Pipeline) Say(ctx context.Context, conversationID, text string) (string, error) {
	res, err := p.HandleTurn(ctx, conversationID, text)
	if err != nil {
		return "", err
	}
	return res.Reply, nil
}

var _ worker.Conversation = (*Pipeline)(nil)

func topIntentNames(intents []nlu.Intent) []string {
	out := make([]string, len(intents))
	for i, in := range intents {
		out[i] = fmt.Sprintf("%s (%.2f)", in.Name, in.Score)
	}
	return out
}
