package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/scope"
)

// CacheStore keeps conversations in a cache.Cache. With a memory cache it
// serves the chat and replay commands; with the layered cache it survives
// restarts.
type CacheStore struct {
	cache cache.Cache
	ttl   time.Duration
	mu    sync.Mutex
}

// NewCacheStore creates a store over c. Entries expire ttl after their last
// write.
func NewCacheStore(c cache.Cache, ttl time.Duration) *CacheStore {
	return &CacheStore{cache: c, ttl: ttl}
}

func key(kind, id string) string {
	return cache.CacheKey("conversation:" + kind + ":" + id)
}

func (s *CacheStore) get(kind, id string, v any) (bool, error) {
	data, ok := s.cache.Get(key(kind, id))
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", kind, err)
	}
	return true, nil
}

func (s *CacheStore) put(kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := s.cache.Set(key(kind, id), data, s.ttl); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

// CreateConversation stores a new conversation
func (s *CacheStore) CreateConversation(_ context.Context, c *model.Conversation) error {
	if c.ID == "" {
		return fmt.Errorf("create conversation: id is empty")
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return s.put("meta", c.ID, c)
}

// GetConversation loads conversation metadata
func (s *CacheStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	ok, err := s.get("meta", id, &c)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// UpdateConversation overwrites conversation metadata
func (s *CacheStore) UpdateConversation(ctx context.Context, c *model.Conversation) error {
	if _, err := s.GetConversation(ctx, c.ID); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	return s.put("meta", c.ID, c)
}

// LoadScope returns the saved scope or nil
func (s *CacheStore) LoadScope(_ context.Context, id string) (*scope.State, error) {
	var st scope.State
	ok, err := s.get("scope", id, &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

// SaveScope persists st, or clears it when st is nil
func (s *CacheStore) SaveScope(_ context.Context, id string, st *scope.State) error {
	if st == nil {
		return s.cache.Delete(key("scope", id))
	}
	return s.put("scope", id, st)
}

// SetClarification stores the pending clarification
func (s *CacheStore) SetClarification(_ context.Context, id string, req *nlu.ClarificationRequest) error {
	if req == nil {
		return s.cache.Delete(key("clarification", id))
	}
	return s.put("clarification", id, req)
}

// TakeClarification returns and clears the pending clarification
func (s *CacheStore) TakeClarification(_ context.Context, id string) (*nlu.ClarificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req nlu.ClarificationRequest
	ok, err := s.get("clarification", id, &req)
	if !ok && err == nil {
		return nil, nil
	}
	if delErr := s.cache.Delete(key("clarification", id)); delErr != nil && err == nil {
		err = delErr
	}
	if err != nil {
		return nil, fmt.Errorf("take clarification: %w", err)
	}
	return &req, nil
}

// AppendTurn adds an entry to the conversation's turn log
func (s *CacheStore) AppendTurn(_ context.Context, t *model.TurnEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var turns []model.TurnEntry
	if _, err := s.get("turns", t.ConversationID, &turns); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return s.put("turns", t.ConversationID, append(turns, *t))
}

// Turns returns the turn log in order
func (s *CacheStore) Turns(_ context.Context, id string) ([]model.TurnEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var turns []model.TurnEntry
	if _, err := s.get("turns", id, &turns); err != nil {
		return nil, fmt.Errorf("turns: %w", err)
	}
	return turns, nil
}

// Block takes the advisory lock. Caches that support Add take it
// atomically; others are guarded by the store mutex.
func (s *CacheStore) Block(ctx context.Context, id string) (bool, error) {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return false, err
	}
	k := key("block", id)
	if adder, ok := s.cache.(cache.Adder); ok {
		err := adder.Add(k, []byte("1"), LockTTL)
		if errors.Is(err, cache.ErrExists) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("block: %w", err)
		}
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.cache.Get(k); held {
		return false, nil
	}
	if err := s.cache.Set(k, []byte("1"), LockTTL); err != nil {
		return false, fmt.Errorf("block: %w", err)
	}
	return true, nil
}

// Unblock releases the advisory lock
func (s *CacheStore) Unblock(_ context.Context, id string) error {
	return s.cache.Delete(key("block", id))
}

// ReportIssue appends a user-reported issue to the conversation's issue list
func (s *CacheStore) ReportIssue(_ context.Context, issue model.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var issues []model.Issue
	if _, err := s.get("issues", issue.ConversationID, &issues); err != nil {
		return fmt.Errorf("report issue: %w", err)
	}
	return s.put("issues", issue.ConversationID, append(issues, issue))
}

// Close is a no-op
func (s *CacheStore) Close() error { return nil }
