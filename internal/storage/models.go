package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("not found")

// TextRecord is one durable transcription or summary result. Records are
// immutable once written; the two kinds share a shape but live in separate
// tables and id spaces.
type TextRecord struct {
	ID         string
	OwnerID    string
	Text       string
	CreatedAt  time.Time
	DurationMs int64
}

// Session links one transcription and one summary for the same logical
// recording of one owner. Either ref may be empty while its counterpart is
// still in flight, but never both.
type Session struct {
	ID              string
	OwnerID         string
	TranscriptionID string
	SummaryID       string
	CreatedAt       time.Time
}

// SessionContent is a session joined with the text of its linked records,
// as consumed by the synthesis engine.
type SessionContent struct {
	ID            string
	Transcription string
	Summary       string
}
