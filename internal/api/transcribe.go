package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minuted/minuted/internal/storage"
	"github.com/minuted/minuted/internal/wire"
)

const maxUploadBytes = 100 << 20 // 100MB

// handleTranscribe relays an uploaded recording to the transcription backend
// and streams the partial transcript back as wire units while the upload is
// still being processed. On success the assembled transcription is persisted
// and linked into the owner's session; an error anywhere leaves no record.
func handleTranscribe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)

		src, err := uploadSource(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}

		enc := startStream(w)
		defer enc.Close()

		res, err := deps.Transcriber.Relay(r.Context(), owner, src, func(id, text string) {
			enc.Write(wire.Event{Status: wire.StatusChunk, Result: text, ID: id})
		})
		if err != nil {
			enc.Write(wire.Event{Status: wire.StatusError, Result: fmt.Sprintf("transcription failed: %v", err)})
			return
		}

		// Empty uploads produce no backend id; mint one so the degenerate
		// record is still addressable.
		id := res.ID
		if id == "" {
			id = uuid.New().String()
		}

		rec := storage.TextRecord{
			ID:         id,
			OwnerID:    owner,
			Text:       res.Text,
			CreatedAt:  time.Now().UTC(),
			DurationMs: res.DurationMs,
		}
		if err := deps.Store.SaveTranscription(rec); err != nil {
			enc.Write(wire.Event{Status: wire.StatusError, Result: fmt.Sprintf("saving transcription: %v", err)})
			return
		}
		if _, err := deps.Store.UpsertSession(owner, id, ""); err != nil {
			enc.Write(wire.Event{Status: wire.StatusError, Result: fmt.Sprintf("linking session: %v", err)})
			return
		}

		enc.Write(wire.Event{Status: wire.StatusCompleted, ID: id})
	}
}

// uploadSource returns the recording bytes: the "file" part of a multipart
// body, or the raw request body otherwise. The source is read lazily so the
// upload streams straight through to the backend.
func uploadSource(w http.ResponseWriter, r *http.Request) (io.Reader, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "multipart/") {
		return http.MaxBytesReader(w, r.Body, maxUploadBytes), nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("multipart body has no file part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" || part.FileName() != "" {
			return part, nil
		}
	}
}

// startStream switches the response to chunked wire-unit delivery and emits
// the opening processing unit.
func startStream(w http.ResponseWriter) *wire.Encoder {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-cache")

	enc := wire.NewEncoder(w)
	enc.Write(wire.Event{Status: wire.StatusProcessing})
	return enc
}
