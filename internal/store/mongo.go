package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/scope"
)

// MongoStore keeps one document per conversation, plus turn and issue
// collections
type MongoStore struct {
	client        *mongo.Client
	conversations *mongo.Collection
	turns         *mongo.Collection
	issues        *mongo.Collection
	log           *zap.Logger
}

// conversationDoc is the stored shape of a conversation
type conversationDoc struct {
	model.Conversation `bson:",inline"`
	Scope              *scope.State              `bson:"scope,omitempty"`
	Clarification      *nlu.ClarificationRequest `bson:"clarification,omitempty"`
	Blocked            bool                      `bson:"blocked"`
	BlockedAt          time.Time                 `bson:"blocked_at,omitempty"`
}

// OpenMongo connects to uri and uses database (default "patientsim")
func OpenMongo(ctx context.Context, uri, database string, log *zap.Logger) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("open mongo store: uri is empty")
	}
	if database == "" {
		database = "patientsim"
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("open mongo store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("open mongo store: ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		conversations: db.Collection("conversations"),
		turns:         db.Collection("turns"),
		issues:        db.Collection("issues"),
		log:           log,
	}
	_, err = s.turns.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("open mongo store: create index: %w", err)
	}
	return s, nil
}

// CreateConversation inserts a new conversation document
func (s *MongoStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		return fmt.Errorf("create conversation: id is empty")
	}
	ts := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = ts, ts
	if _, err := s.conversations.InsertOne(ctx, conversationDoc{Conversation: *c}); err != nil {
		return fmt.Errorf("create conversation: insert: %w", err)
	}
	return nil
}

// GetConversation loads conversation metadata
func (s *MongoStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var doc conversationDoc
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &doc.Conversation, nil
}

func (s *MongoStore) set(ctx context.Context, id string, update bson.M) error {
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// wrap annotates err with op, passing ErrNotFound through untouched
func wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// UpdateConversation writes patient, user name and position
func (s *MongoStore) UpdateConversation(ctx context.Context, c *model.Conversation) error {
	c.UpdatedAt = time.Now().UTC()
	return wrap("update conversation", s.set(ctx, c.ID, bson.M{"$set": bson.M{
		"patient_id": c.PatientID,
		"user_name":  c.UserName,
		"position":   c.Position,
		"updated_at": c.UpdatedAt,
	}}))
}

// LoadScope returns the saved scope or nil
func (s *MongoStore) LoadScope(ctx context.Context, id string) (*scope.State, error) {
	var doc conversationDoc
	opts := options.FindOne().SetProjection(bson.M{"scope": 1})
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load scope: %w", err)
	}
	return doc.Scope, nil
}

// SaveScope persists st, or clears it when st is nil
func (s *MongoStore) SaveScope(ctx context.Context, id string, st *scope.State) error {
	update := bson.M{"$unset": bson.M{"scope": ""}}
	if st != nil {
		update = bson.M{"$set": bson.M{"scope": st, "updated_at": time.Now().UTC()}}
	}
	return wrap("save scope", s.set(ctx, id, update))
}

// SetClarification stores the pending clarification
func (s *MongoStore) SetClarification(ctx context.Context, id string, req *nlu.ClarificationRequest) error {
	update := bson.M{"$unset": bson.M{"clarification": ""}}
	if req != nil {
		update = bson.M{"$set": bson.M{"clarification": req}}
	}
	return wrap("set clarification", s.set(ctx, id, update))
}

// TakeClarification unsets the clarification and returns the value it had
func (s *MongoStore) TakeClarification(ctx context.Context, id string) (*nlu.ClarificationRequest, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"clarification": 1})
	var doc conversationDoc
	err := s.conversations.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$unset": bson.M{"clarification": ""}},
		opts,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take clarification: %w", err)
	}
	return doc.Clarification, nil
}

// AppendTurn inserts a turn document
func (s *MongoStore) AppendTurn(ctx context.Context, t *model.TurnEntry) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if _, err := s.turns.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("append turn: insert: %w", err)
	}
	return nil
}

// Turns returns the turn log in order
func (s *MongoStore) Turns(ctx context.Context, id string) ([]model.TurnEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.turns.Find(ctx, bson.M{"conversation_id": id}, opts)
	if err != nil {
		return nil, fmt.Errorf("turns: find: %w", err)
	}
	var out []model.TurnEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("turns: decode: %w", err)
	}
	return out, nil
}

// Block sets the advisory flag unless a live lock holds it
func (s *MongoStore) Block(ctx context.Context, id string) (bool, error) {
	ts := time.Now().UTC()
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"blocked": false},
			bson.M{"blocked_at": bson.M{"$lt": ts.Add(-LockTTL)}},
		},
	}
	res, err := s.conversations.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"blocked": true, "blocked_at": ts}})
	if err != nil {
		return false, fmt.Errorf("block: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.GetConversation(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// Unblock clears the advisory flag
func (s *MongoStore) Unblock(ctx context.Context, id string) error {
	if _, err := s.conversations.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"blocked": false}, "$unset": bson.M{"blocked_at": ""}}); err != nil {
		return fmt.Errorf("unblock: %w", err)
	}
	return nil
}

// ReportIssue inserts a user-reported issue
func (s *MongoStore) ReportIssue(ctx context.Context, issue model.Issue) error {
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}
	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("report issue: insert: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
