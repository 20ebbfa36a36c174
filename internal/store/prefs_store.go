package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PrefsStore persists per-session preferences.
type PrefsStore struct {
	db *DB
}

// NewPrefsStore creates a preference store using the given database.
func NewPrefsStore(db *DB) *PrefsStore {
	return &PrefsStore{db: db}
}

// SetLanguage records the language code chosen by a session.
func (p *PrefsStore) SetLanguage(ctx context.Context, sessionID, code string) error {
	now := time.Now().UTC().Format(time.DateTime)
	_, err := p.db.sql.ExecContext(ctx,
		`INSERT INTO language_prefs (session_id, code, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   code = excluded.code,
		   updated_at = excluded.updated_at`,
		sessionID, code, now,
	)
	return err
}

// Language returns the language code stored for a session.
func (p *PrefsStore) Language(ctx context.Context, sessionID string) (string, bool, error) {
	var code string
	err := p.db.sql.QueryRowContext(ctx,
		`SELECT code FROM language_prefs WHERE session_id = ?`, sessionID,
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}
