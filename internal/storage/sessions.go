package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

func (s *Store) lockOwner(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.ownerMu[ownerID]
	if !ok {
		mu = &sync.Mutex{}
		s.ownerMu[ownerID] = mu
	}
	return mu
}

// UpsertSession links a transcription and/or summary id into the owner's
// session for that logical recording. At least one id must be supplied.
//
// The lookup matches any existing session of the owner referencing either
// supplied id in its respective column; if none matches, a new session is
// created with all supplied refs set. A summary caller therefore passes the
// summary's transcript correlation id as well, so a transcription arriving
// before or after its summary always lands on the same row.
//
// The scan-then-write is serialized per owner; without that, two racing
// upserts for the same recording would each miss the other's row and create
// duplicates.
func (s *Store) UpsertSession(ownerID, transcriptionID, summaryID string) (Session, error) {
	if transcriptionID == "" && summaryID == "" {
		return Session{}, fmt.Errorf("upsert session: no record id supplied")
	}

	mu := s.lockOwner(ownerID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.findSessionByRef(ownerID, transcriptionID, summaryID)
	if err != nil && err != ErrNotFound {
		return Session{}, err
	}

	if err == ErrNotFound {
		session := Session{
			ID:              uuid.New().String(),
			OwnerID:         ownerID,
			TranscriptionID: transcriptionID,
			SummaryID:       summaryID,
			CreatedAt:       time.Now().UTC(),
		}
		_, err := s.db.Exec(
			`INSERT INTO smart_sessions (id, owner_id, transcription_id, summary_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			session.ID, session.OwnerID, nullable(session.TranscriptionID), nullable(session.SummaryID),
			session.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return Session{}, fmt.Errorf("creating session: %w", err)
		}
		return session, nil
	}

	// Merge only the supplied refs into the existing row.
	if transcriptionID != "" {
		existing.TranscriptionID = transcriptionID
	}
	if summaryID != "" {
		existing.SummaryID = summaryID
	}
	_, err = s.db.Exec(
		`UPDATE smart_sessions SET transcription_id = ?, summary_id = ? WHERE id = ?`,
		nullable(existing.TranscriptionID), nullable(existing.SummaryID), existing.ID,
	)
	if err != nil {
		return Session{}, fmt.Errorf("updating session: %w", err)
	}
	return existing, nil
}

func (s *Store) findSessionByRef(ownerID, transcriptionID, summaryID string) (Session, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, transcription_id, summary_id, created_at
		FROM smart_sessions
		WHERE owner_id = ?
		  AND ((? != '' AND transcription_id = ?) OR (? != '' AND summary_id = ?))
		LIMIT 1`,
		ownerID, transcriptionID, transcriptionID, summaryID, summaryID,
	)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var transcriptionID, summaryID sql.NullString
	var createdAt string
	err := row.Scan(&sess.ID, &sess.OwnerID, &transcriptionID, &summaryID, &createdAt)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	sess.TranscriptionID = transcriptionID.String
	sess.SummaryID = summaryID.String
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Session{}, fmt.Errorf("parsing created_at: %w", err)
	}
	sess.CreatedAt = t
	return sess, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListSessions returns all of the owner's sessions, newest first.
func (s *Store) ListSessions(ownerID string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_id, transcription_id, summary_id, created_at
		FROM smart_sessions WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// GetSession returns the owner's session with the given id.
func (s *Store) GetSession(id, ownerID string) (Session, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, transcription_id, summary_id, created_at
		FROM smart_sessions WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	return scanSession(row)
}

// DeleteSession removes the owner's session and its linked records.
func (s *Store) DeleteSession(id, ownerID string) error {
	sess, err := s.GetSession(id, ownerID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if sess.TranscriptionID != "" {
		if _, err := tx.Exec(`DELETE FROM transcriptions WHERE id = ? AND owner_id = ?`, sess.TranscriptionID, ownerID); err != nil {
			return err
		}
	}
	if sess.SummaryID != "" {
		if _, err := tx.Exec(`DELETE FROM summaries WHERE id = ? AND owner_id = ?`, sess.SummaryID, ownerID); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM smart_sessions WHERE id = ?`, sess.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSessionContent resolves session ids to their linked texts, restricted
// to the requesting owner. Ids that are missing or owned by someone else are
// silently dropped; input order is preserved for the rest.
func (s *Store) LoadSessionContent(ownerID string, ids []string) ([]SessionContent, error) {
	var contents []SessionContent
	for _, id := range ids {
		sess, err := s.GetSession(id, ownerID)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}

		var content SessionContent
		content.ID = sess.ID
		if sess.TranscriptionID != "" {
			rec, err := s.GetTranscription(sess.TranscriptionID, ownerID)
			if err != nil && err != ErrNotFound {
				return nil, err
			}
			content.Transcription = rec.Text
		}
		if sess.SummaryID != "" {
			rec, err := s.GetSummary(sess.SummaryID, ownerID)
			if err != nil && err != ErrNotFound {
				return nil, err
			}
			content.Summary = rec.Text
		}
		contents = append(contents, content)
	}
	return contents, nil
}
