package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minuted/minuted/internal/analytics"
	"github.com/minuted/minuted/internal/storage"
)

type sessionSummary struct {
	ID              string `json:"id"`
	TranscriptionID string `json:"transcription_id,omitempty"`
	SummaryID       string `json:"summary_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type recordBody struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

type sessionDetail struct {
	ID            string      `json:"id"`
	CreatedAt     string      `json:"created_at"`
	Transcription *recordBody `json:"transcription,omitempty"`
	Summary       *recordBody `json:"summary,omitempty"`
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)

		sessions, err := deps.Store.ListSessions(owner)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing sessions: %v", err)
			return
		}

		out := make([]sessionSummary, len(sessions))
		for i, s := range sessions {
			out[i] = sessionSummary{
				ID:              s.ID,
				TranscriptionID: s.TranscriptionID,
				SummaryID:       s.SummaryID,
				CreatedAt:       s.CreatedAt.Format(time.RFC3339),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)
		id := chi.URLParam(r, "id")

		sess, err := deps.Store.GetSession(id, owner)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
			return
		}

		detail := sessionDetail{
			ID:        sess.ID,
			CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		}
		if sess.TranscriptionID != "" {
			rec, err := deps.Store.GetTranscription(sess.TranscriptionID, owner)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusInternalServerError, "api_error", "loading transcription: %v", err)
				return
			}
			if err == nil {
				detail.Transcription = &recordBody{ID: rec.ID, Text: rec.Text, DurationMs: rec.DurationMs}
			}
		}
		if sess.SummaryID != "" {
			rec, err := deps.Store.GetSummary(sess.SummaryID, owner)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusInternalServerError, "api_error", "loading summary: %v", err)
				return
			}
			if err == nil {
				detail.Summary = &recordBody{ID: rec.ID, Text: rec.Text}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(detail)
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteSession(id, owner)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting session: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleMetrics(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)

		sessions, err := deps.Store.ListSessions(owner)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing sessions: %v", err)
			return
		}

		ids := make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID
		}
		contents, err := deps.Store.LoadSessionContent(owner, ids)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading session content: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(analytics.Compute(sessions, contents))
	}
}
