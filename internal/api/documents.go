package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/minuted/minuted/internal/storage"
)

const maxDocumentBytes = 50 << 20 // 50MB

// handleIngestDocument accepts a PDF upload, extracts its plain text, and
// persists it as a transcription-kind record linked into a fresh session.
// Written documents join the same corpus that spoken recordings do, so
// prompts range over both.
func handleIngestDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)

		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading document: %v", err)
			return
		}
		if len(data) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "empty document")
			return
		}

		text, err := extractPDFText(data)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "parsing pdf: %v", err)
			return
		}

		id := uuid.New().String()
		rec := storage.TextRecord{
			ID:        id,
			OwnerID:   owner,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveTranscription(rec); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving document text: %v", err)
			return
		}
		sess, err := deps.Store.UpsertSession(owner, id, "")
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "linking session: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":         id,
			"session_id": sess.ID,
			"chars":      len([]rune(text)),
		})
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
