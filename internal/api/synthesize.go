package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minuted/minuted/internal/llm"
	"github.com/minuted/minuted/internal/storage"
	"github.com/minuted/minuted/internal/synthesis"
	"github.com/minuted/minuted/internal/wire"
)

const defaultSummaryInstruction = "Summarize the following transcription. " +
	"Keep every fact, decision, deadline, and open question; drop filler."

type SummaryRequest struct {
	TranscriptID string  `json:"transcript_id"`
	Model        string  `json:"model"`
	Temperature  float32 `json:"temperature"`
	Prompt       string  `json:"prompt"`
}

// handleSummarize streams a model-written summary of one stored
// transcription and persists it linked into the transcription's session.
func handleSummarize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req SummaryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TranscriptID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "transcript_id is required")
			return
		}

		rec, err := deps.Store.GetTranscription(req.TranscriptID, owner)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "transcription not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading transcription: %v", err)
			return
		}

		instruction := req.Prompt
		if instruction == "" {
			instruction = defaultSummaryInstruction
		}
		model := req.Model
		if model == "" {
			model = deps.DefaultModel
		}

		summaryID := uuid.New().String()
		enc := startStream(w)
		defer enc.Close()

		var sb strings.Builder
		err = deps.LLM.StreamChat(r.Context(), llm.ChatRequest{
			Model:       model,
			Temperature: req.Temperature,
			Messages: []llm.Message{
				{Role: "user", Content: instruction + "\n\n" + rec.Text},
			},
		}, func(delta string) {
			sb.WriteString(delta)
			enc.Write(wire.Event{Status: wire.StatusChunk, Result: delta, ID: summaryID})
		})
		if err != nil {
			enc.Write(wire.Event{Status: wire.StatusError, Result: fmt.Sprintf("summarization failed: %v", err)})
			return
		}

		summary := storage.TextRecord{
			ID:        summaryID,
			OwnerID:   owner,
			Text:      sb.String(),
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveSummary(summary); err != nil {
			enc.Write(wire.Event{Status: wire.StatusError, Result: fmt.Sprintf("saving summary: %v", err)})
			return
		}
		// Carry the transcript id so this lands on the transcription's
		// session regardless of which record arrived first.
		if _, err := deps.Store.UpsertSession(owner, rec.ID, summaryID); err != nil {
			enc.Write(wire.Event{Status: wire.StatusError, Result: fmt.Sprintf("linking session: %v", err)})
			return
		}

		enc.Write(wire.Event{Status: wire.StatusCompleted, ID: summaryID})
	}
}

type PromptRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature float32  `json:"temperature"`
	SessionIDs  []string `json:"session_ids"`
}

// handlePrompt answers a free-form prompt over the owner's stored sessions,
// streaming synthesis tokens as they arrive.
func handlePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r)

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req PromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
			return
		}
		model := req.Model
		if model == "" {
			model = deps.DefaultModel
		}

		enc := startStream(w)
		defer enc.Close()

		err := deps.Synth.Run(r.Context(), synthesis.Request{
			OwnerID:     owner,
			Prompt:      req.Prompt,
			Model:       model,
			Temperature: req.Temperature,
			SessionIDs:  req.SessionIDs,
		}, func(chunk string) {
			enc.Write(wire.Event{Status: wire.StatusChunk, Result: chunk})
		})
		if err != nil {
			enc.Write(wire.Event{Status: wire.StatusError, Result: fmt.Sprintf("synthesis failed: %v", err)})
			return
		}

		enc.Write(wire.Event{Status: wire.StatusCompleted})
	}
}
