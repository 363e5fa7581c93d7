// Package audit records acknowledged profile submissions.
package audit

import (
	"time"

	"github.com/google/uuid"

	"studentportal/internal/student"
)

// MessageType tags submission events on the background queue.
const MessageType = "submission"

// Event is one acknowledged submission.
type Event struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	NationalID  string    `json:"national_id"`
	SeatNumber  string    `json:"seat_number"`
	StudentCode string    `json:"student_code"`
	EnglishName string    `json:"english_name"`
	PhotoURL    string    `json:"photo_url"`
	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// NewEvent describes the committed record rec.
func NewEvent(sessionID string, rec student.Record) Event {
	return Event{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		NationalID:  rec.NationalID,
		SeatNumber:  rec.SeatNumber,
		StudentCode: rec.StudentCode,
		EnglishName: rec.FullEnglishName(),
		PhotoURL:    rec.PhotoURL,
		SubmittedAt: time.Now().UTC(),
	}
}
