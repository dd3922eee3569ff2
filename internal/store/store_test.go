package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/scope"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqlite, err := OpenSQL(ctx, "sqlite", filepath.Join(t.TempDir(), "patientsim.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewCacheStore(cache.NewMemoryCache(time.Hour, time.Minute), time.Hour),
		"disk":   NewCacheStore(cache.NewDiskCache(t.TempDir(), time.Hour), time.Hour),
		"sqlite": sqlite,
	}
}

func TestStore_Conversation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &model.Conversation{ID: "conv-1", UserName: "Jane Doe"}
			require.NoError(t, s.CreateConversation(ctx, c))

			got, err := s.GetConversation(ctx, "conv-1")
			require.NoError(t, err)
			assert.Equal(t, "Jane Doe", got.UserName)
			assert.Equal(t, model.PositionNone, got.Position)

			got.PatientID = "chest-pain-01"
			got.Position = model.PositionInterview
			require.NoError(t, s.UpdateConversation(ctx, got))

			again, err := s.GetConversation(ctx, "conv-1")
			require.NoError(t, err)
			assert.Equal(t, "chest-pain-01", again.PatientID)
			assert.Equal(t, model.PositionInterview, again.Position)

			_, err = s.GetConversation(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.UpdateConversation(ctx, &model.Conversation{ID: "missing"}), ErrNotFound)
		})
	}
}

func TestStore_ScopeRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateConversation(ctx, &model.Conversation{ID: "c"}))

			st, err := s.LoadScope(ctx, "c")
			require.NoError(t, err)
			assert.Nil(t, st, "nothing saved yet")

			tr := scope.New()
			require.NoError(t, tr.SetSubScope(scope.AssocSymptoms))
			tr.SetElement("nausea", scope.ReplaceTop)
			tr.SetElement("vomiting", scope.PushNested)
			want := tr.State()
			require.NoError(t, s.SaveScope(ctx, "c", &want))

			st, err = s.LoadScope(ctx, "c")
			require.NoError(t, err)
			require.NotNil(t, st)
			assert.Equal(t, want, *st)
			assert.Equal(t, want, scope.FromState(st).State())

			require.NoError(t, s.SaveScope(ctx, "c", nil))
			st, err = s.LoadScope(ctx, "c")
			require.NoError(t, err)
			assert.Nil(t, st)
		})
	}
}

func TestStore_ClarificationIsOneShot(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateConversation(ctx, &model.Conversation{ID: "c"}))

			req := &nlu.ClarificationRequest{
				Intent:       nlu.Intent{Name: "GetIndication", Score: 0.7},
				Entities:     nlu.Entities{{Text: "why", Type: nlu.TypeQuery, Start: 0, End: 2}},
				ExpectedType: nlu.TypeMedication,
			}
			require.NoError(t, s.SetClarification(ctx, "c", req))

			got, err := s.TakeClarification(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, req, got)

			got, err = s.TakeClarification(ctx, "c")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_Turns(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateConversation(ctx, &model.Conversation{ID: "c"}))

			base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			for i, q := range []string{"hello", "what brings you in", "when did it start"} {
				require.NoError(t, s.AppendTurn(ctx, &model.TurnEntry{
					ID:             q,
					ConversationID: "c",
					Query:          q,
					Intents:        []nlu.Intent{{Name: "Greeting", Score: 0.9}},
					Response:       "reply",
					CreatedAt:      base.Add(time.Duration(i) * time.Second),
				}))
			}

			turns, err := s.Turns(ctx, "c")
			require.NoError(t, err)
			require.Len(t, turns, 3)
			assert.Equal(t, "hello", turns[0].Query)
			assert.Equal(t, "when did it start", turns[2].Query)
			assert.Equal(t, "Greeting", turns[1].Intents[0].Name)
			assert.True(t, turns[2].CreatedAt.Equal(base.Add(2*time.Second)))

			none, err := s.Turns(ctx, "other")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_Block(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateConversation(ctx, &model.Conversation{ID: "c"}))

			ok, err := s.Block(ctx, "c")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.Block(ctx, "c")
			require.NoError(t, err)
			assert.False(t, ok, "second turn must wait")

			require.NoError(t, s.Unblock(ctx, "c"))
			ok, err = s.Block(ctx, "c")
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = s.Block(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_BlockIsExclusive(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateConversation(ctx, &model.Conversation{ID: "c"}))

			var wg sync.WaitGroup
			var mu sync.Mutex
			acquired := 0
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.Block(ctx, "c")
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						acquired++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, acquired)
		})
	}
}

func TestStore_ReportIssue(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateConversation(ctx, &model.Conversation{ID: "c"}))
			assert.NoError(t, s.ReportIssue(ctx, model.Issue{ConversationID: "c", Message: "wrong answer about allergies"}))
		})
	}
}

func TestSQLStore_Rebind(t *testing.T) {
	s := &SQLStore{dialect: "postgres"}
	assert.Equal(t, "UPDATE t SET a = $1 WHERE id = $2", s.rebind("UPDATE t SET a = ? WHERE id = ?"))

	s.dialect = "sqlite"
	assert.Equal(t, "SELECT ?", s.rebind("SELECT ?"))
}

func TestSQLStore_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQL(ctx, "sqlite", filepath.Join(t.TempDir(), "m.db"), nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Migrate(ctx))
	var version int
	require.NoError(t, s.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), model.StoreConfig{Driver: "memory", TTL: time.Hour}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CacheStore{}, s)

	_, err = Open(context.Background(), model.StoreConfig{Driver: "redis"}, nil)
	assert.Error(t, err)

	_, err = Open(context.Background(), model.StoreConfig{Driver: "postgres"}, nil)
	assert.Error(t, err, "dsn is required")
}
