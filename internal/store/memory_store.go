package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/soyeahso/actiongw/internal/domain"
)

// Memory scopes.
const (
	ScopeSession    = "session"
	ScopeCollective = "collective"
)

// MemoryStore manages saved memories with full-text search via SQLite FTS5.
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a memory store using the given database.
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Save inserts a memory and returns it with its id and timestamp filled in.
func (m *MemoryStore) Save(ctx context.Context, rec domain.MemoryRecord) (domain.MemoryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Scope == "" {
		rec.Scope = ScopeSession
	}
	rec.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err := m.db.sql.ExecContext(ctx,
		`INSERT INTO memories (id, session_id, scope, text, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Scope, rec.Text, strings.Join(rec.Tags, ","),
		rec.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return domain.MemoryRecord{}, err
	}
	return rec, nil
}

// Search finds memories in scope matching query, best match first. An empty
// query, or one with no searchable words, returns the most recent records.
func (m *MemoryStore) Search(ctx context.Context, scope, query string, limit int) ([]domain.MemoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	match := ftsQuery(query)
	if match == "" {
		return m.recent(ctx, `scope = ?`, scope, limit)
	}

	rows, err := m.db.sql.QueryContext(ctx,
		`SELECT m.id, m.session_id, m.scope, m.text, m.tags, m.created_at
		 FROM memories_fts
		 JOIN memories m ON m.rowid = memories_fts.rowid
		 WHERE memories_fts MATCH ?
		   AND m.scope = ?
		 ORDER BY rank
		 LIMIT ?`,
		match, scope, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListBySession returns a session's memories, newest first.
func (m *MemoryStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.MemoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return m.recent(ctx, `session_id = ? AND scope = 'session'`, sessionID, limit)
}

// Count returns the number of memories in scope.
func (m *MemoryStore) Count(ctx context.Context, scope string) (int, error) {
	var n int
	err := m.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE scope = ?`, scope).Scan(&n)
	return n, err
}

// Delete removes a memory by ID.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	_, err := m.db.sql.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	return err
}

func (m *MemoryStore) recent(ctx context.Context, where string, arg any, limit int) ([]domain.MemoryRecord, error) {
	rows, err := m.db.sql.QueryContext(ctx,
		`SELECT id, session_id, scope, text, tags, created_at
		 FROM memories WHERE `+where+`
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		arg, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ftsQuery turns free text into an FTS5 expression of quoted terms joined by
// OR, so user input can never inject FTS syntax.
func ftsQuery(q string) string {
	words := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

func scanMemories(rows *sql.Rows) ([]domain.MemoryRecord, error) {
	var out []domain.MemoryRecord
	for rows.Next() {
		var rec domain.MemoryRecord
		var tags, createdAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Scope, &rec.Text, &tags, &createdAt); err != nil {
			return nil, err
		}
		if tags != "" {
			rec.Tags = strings.Split(tags, ",")
		}
		rec.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
