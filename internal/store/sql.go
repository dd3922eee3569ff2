package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/nlu"
	"github.com/ppiankov/patientsim/internal/scope"
)

// timeFormat is fixed width so text timestamps sort chronologically
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLStore persists conversations in Postgres or SQLite
type SQLStore struct {
	db      *sql.DB
	dialect string
	log     *zap.Logger
}

// OpenSQL connects to the database and migrates the schema. driver is
// "postgres" or "sqlite".
func OpenSQL(ctx context.Context, driver, dsn string, log *zap.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open %s store: dsn is empty", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer keeps SQLite from reporting SQLITE_BUSY under concurrent turns
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s store: ping: %w", driver, err)
	}
	s, err := NewSQLStore(db, driver, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore returns a store bound to an existing database handle
func NewSQLStore(db *sql.DB, dialect string, log *zap.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if dialect != "postgres" && dialect != "sqlite" {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLStore{db: db, dialect: dialect, log: log}, nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func now() string { return time.Now().UTC().Format(timeFormat) }

func parseTime(v string) time.Time {
	t, err := time.Parse(timeFormat, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// CreateConversation inserts a new conversation row
func (s *SQLStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		return fmt.Errorf("create conversation: id is empty")
	}
	ts := now()
	_, err := s.exec(ctx, `INSERT INTO conversations (id, patient_id, user_name, position, blocked, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`, c.ID, c.PatientID, c.UserName, int(c.Position), ts, ts)
	if err != nil {
		return fmt.Errorf("create conversation: insert: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

// GetConversation loads conversation metadata
func (s *SQLStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, patient_id, user_name, position, created_at, updated_at
		FROM conversations WHERE id = ?`), id)
	var c model.Conversation
	var position int
	var created, updated string
	if err := row.Scan(&c.ID, &c.PatientID, &c.UserName, &position, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: scan: %w", err)
	}
	c.Position = model.Position(position)
	c.CreatedAt, c.UpdatedAt = parseTime(created), parseTime(updated)
	return &c, nil
}

// UpdateConversation writes patient, user name and position
func (s *SQLStore) UpdateConversation(ctx context.Context, c *model.Conversation) error {
	ts := now()
	res, err := s.exec(ctx, `UPDATE conversations SET patient_id = ?, user_name = ?, position = ?, updated_at = ? WHERE id = ?`,
		c.PatientID, c.UserName, int(c.Position), ts, c.ID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if err := mustAffect(res); err != nil {
		return err
	}
	c.UpdatedAt = parseTime(ts)
	return nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadScope returns the saved scope or nil
func (s *SQLStore) LoadScope(ctx context.Context, id string) (*scope.State, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT scope FROM conversations WHERE id = ?`), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load scope: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var st scope.State
	if err := json.Unmarshal([]byte(raw.String), &st); err != nil {
		return nil, fmt.Errorf("load scope: decode: %w", err)
	}
	return &st, nil
}

// SaveScope persists st, or clears it when st is nil
func (s *SQLStore) SaveScope(ctx context.Context, id string, st *scope.State) error {
	var value any
	if st != nil {
		v, err := nullJSON(st)
		if err != nil {
			return fmt.Errorf("save scope: encode: %w", err)
		}
		value = v
	}
	res, err := s.exec(ctx, `UPDATE conversations SET scope = ?, updated_at = ? WHERE id = ?`, value, now(), id)
	if err != nil {
		return fmt.Errorf("save scope: %w", err)
	}
	return mustAffect(res)
}

// SetClarification stores the pending clarification
func (s *SQLStore) SetClarification(ctx context.Context, id string, req *nlu.ClarificationRequest) error {
	var value any
	if req != nil {
		v, err := nullJSON(req)
		if err != nil {
			return fmt.Errorf("set clarification: encode: %w", err)
		}
		value = v
	}
	res, err := s.exec(ctx, `UPDATE conversations SET clarification = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("set clarification: %w", err)
	}
	return mustAffect(res)
}

// TakeClarification reads and clears the pending clarification in one
// transaction
func (s *SQLStore) TakeClarification(ctx context.Context, id string) (*nlu.ClarificationRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("take clarification: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT clarification FROM conversations WHERE id = ?`
	if s.dialect == "postgres" {
		query += ` FOR UPDATE`
	}
	var raw sql.NullString
	if err := tx.QueryRowContext(ctx, s.rebind(query), id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("take clarification: select: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE conversations SET clarification = NULL WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("take clarification: clear: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("take clarification: commit: %w", err)
	}

	var req nlu.ClarificationRequest
	if err := json.Unmarshal([]byte(raw.String), &req); err != nil {
		return nil, fmt.Errorf("take clarification: decode: %w", err)
	}
	return &req, nil
}

// AppendTurn inserts a turn log row
func (s *SQLStore) AppendTurn(ctx context.Context, t *model.TurnEntry) error {
	if t.ID == "" {
		return fmt.Errorf("append turn: id is empty")
	}
	intents, err := nullJSON(t.Intents)
	if err != nil {
		return fmt.Errorf("append turn: encode intents: %w", err)
	}
	entities, err := nullJSON(t.Entities)
	if err != nil {
		return fmt.Errorf("append turn: encode entities: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err = s.exec(ctx, `INSERT INTO turns (id, conversation_id, query, altered_query, intents, entities, handler, response, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ConversationID, t.Query, t.AlteredQuery, intents, entities, t.Handler, t.Response, t.Error,
		t.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("append turn: insert: %w", err)
	}
	return nil
}

// Turns returns the turn log in order
func (s *SQLStore) Turns(ctx context.Context, id string) ([]model.TurnEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, conversation_id, query, altered_query, intents, entities, handler, response, error, created_at
		FROM turns WHERE conversation_id = ? ORDER BY created_at, id`), id)
	if err != nil {
		return nil, fmt.Errorf("turns: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.TurnEntry
	for rows.Next() {
		var t model.TurnEntry
		var intents, entities sql.NullString
		var created string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Query, &t.AlteredQuery, &intents, &entities,
			&t.Handler, &t.Response, &t.Error, &created); err != nil {
			return nil, fmt.Errorf("turns: scan: %w", err)
		}
		if intents.Valid {
			if err := json.Unmarshal([]byte(intents.String), &t.Intents); err != nil {
				return nil, fmt.Errorf("turns: decode intents: %w", err)
			}
		}
		if entities.Valid {
			if err := json.Unmarshal([]byte(entities.String), &t.Entities); err != nil {
				return nil, fmt.Errorf("turns: decode entities: %w", err)
			}
		}
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("turns: rows: %w", err)
	}
	return out, nil
}

// Block sets the advisory flag unless a live lock holds it. A lock older
// than LockTTL is taken over.
func (s *SQLStore) Block(ctx context.Context, id string) (bool, error) {
	stale := time.Now().UTC().Add(-LockTTL).Format(timeFormat)
	res, err := s.exec(ctx, `UPDATE conversations SET blocked = 1, blocked_at = ?
		WHERE id = ? AND (blocked = 0 OR blocked_at IS NULL OR blocked_at < ?)`, now(), id, stale)
	if err != nil {
		return false, fmt.Errorf("block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("block: rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.GetConversation(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// Unblock clears the advisory flag
func (s *SQLStore) Unblock(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `UPDATE conversations SET blocked = 0, blocked_at = NULL WHERE id = ?`, id); err != nil {
		return fmt.Errorf("unblock: %w", err)
	}
	return nil
}

// ReportIssue inserts a user-reported issue
func (s *SQLStore) ReportIssue(ctx context.Context, issue model.Issue) error {
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO issues (conversation_id, message, created_at) VALUES (?, ?, ?)`,
		issue.ConversationID, issue.Message, issue.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("report issue: insert: %w", err)
	}
	return nil
}

// Close closes the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}
