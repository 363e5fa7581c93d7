package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS submission_audit (
	id           UUID PRIMARY KEY,
	session_id   TEXT NOT NULL,
	national_id  TEXT NOT NULL,
	seat_number  TEXT NOT NULL DEFAULT '',
	student_code TEXT NOT NULL DEFAULT '',
	english_name TEXT NOT NULL,
	photo_url    TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS submission_audit_student_idx
	ON submission_audit (national_id, submitted_at DESC);
`

// Repository persists submission events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Insert writes evt. Redelivered events with a known id are ignored.
func (r *Repository) Insert(ctx context.Context, evt Event) error {
	if evt.NationalID == "" {
		return errors.New("audit: national id required")
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.SubmittedAt.IsZero() {
		evt.SubmittedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO submission_audit (id, session_id, national_id, seat_number, student_code, english_name, photo_url, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.SessionID, evt.NationalID, evt.SeatNumber, evt.StudentCode, evt.EnglishName, evt.PhotoURL, evt.SubmittedAt)
	return err
}

// ListByStudent returns the newest submissions of one student.
func (r *Repository) ListByStudent(ctx context.Context, nationalID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, national_id, seat_number, student_code, english_name, photo_url, submitted_at, created_at
		FROM submission_audit
		WHERE national_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`, nationalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.SessionID, &evt.NationalID, &evt.SeatNumber, &evt.StudentCode, &evt.EnglishName, &evt.PhotoURL, &evt.SubmittedAt, &evt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}
