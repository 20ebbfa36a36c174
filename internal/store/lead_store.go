package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/actiongw/internal/domain"
)

// LeadStore persists captured sales leads.
type LeadStore struct {
	db *DB
}

// NewLeadStore creates a lead store using the given database.
func NewLeadStore(db *DB) *LeadStore {
	return &LeadStore{db: db}
}

// Save inserts a lead and returns it with its id and timestamp filled in.
func (l *LeadStore) Save(ctx context.Context, lead domain.LeadRecord) (domain.LeadRecord, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	lead.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err := l.db.sql.ExecContext(ctx,
		`INSERT INTO leads (id, session_id, name, email, phone, company, note, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.SessionID, lead.Name, lead.Email, lead.Phone,
		lead.Company, lead.Note, lead.Source, lead.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return domain.LeadRecord{}, err
	}
	return lead, nil
}

// List returns the newest leads first.
func (l *LeadStore) List(ctx context.Context, limit int) ([]domain.LeadRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.sql.QueryContext(ctx,
		`SELECT id, session_id, name, email, phone, company, note, source, created_at
		 FROM leads ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeadRecord
	for rows.Next() {
		var lead domain.LeadRecord
		var createdAt string
		if err := rows.Scan(&lead.ID, &lead.SessionID, &lead.Name, &lead.Email, &lead.Phone,
			&lead.Company, &lead.Note, &lead.Source, &createdAt); err != nil {
			return nil, err
		}
		lead.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		out = append(out, lead)
	}
	return out, rows.Err()
}

// Count returns the number of stored leads.
func (l *LeadStore) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n)
	return n, err
}
