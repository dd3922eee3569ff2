// Package store persists conversations: metadata and flow position, the
// scope triple, the one-shot clarification, the turn log and the advisory
// per-conversation lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/scope"
)

// ErrNotFound is returned for unknown conversations
var ErrNotFound = errors.New("conversation not found")

// LockTTL bounds how long a crashed turn can keep a conversation blocked
const LockTTL = 2 * time.Minute

// Store is the persistence collaborator of the turn pipeline
type Store interface {
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	UpdateConversation(ctx context.Context, c *model.Conversation) error

	// LoadScope returns the persisted scope, or nil when none was saved
	LoadScope(ctx context.Context, id string) (*scope.State, error)
	// SaveScope persists s; nil clears it
	SaveScope(ctx context.Context, id string, s *scope.State) error

	SetClarification(ctx context.Context, id string, req *nlu.ClarificationRequest) error
	// TakeClarification returns the pending request and clears it. A second
	// call returns nil.
	TakeClarification(ctx context.Context, id string) (*nlu.ClarificationRequest, error)

	AppendTurn(ctx context.Context, t *model.TurnEntry) error
	Turns(ctx context.Context, id string) ([]model.TurnEntry, error)

	// Block acquires the advisory lock; false means another turn holds it
	Block(ctx context.Context, id string) (bool, error)
	Unblock(ctx context.Context, id string) error

	ReportIssue(ctx context.Context, issue model.Issue) error

	Close() error
}

// Open builds the store selected by cfg.Driver
func Open(ctx context.Context, cfg model.StoreConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(cfg.Driver) {
	case "memory", "":
		return NewCacheStore(cache.NewMemoryCache(cfg.TTL, 10*time.Minute), cfg.TTL), nil
	case "disk":
		return NewCacheStore(cache.NewLayeredCache(10*time.Minute, cfg.Dir, cfg.TTL), cfg.TTL), nil
	case "postgres", "sqlite":
		return OpenSQL(ctx, cfg.Driver, cfg.DSN, log)
	case "mongo", "mongodb":
		return OpenMongo(ctx, cfg.DSN, cfg.Database, log)
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: memory, disk, postgres, sqlite, mongo)", cfg.Driver)
	}
}
