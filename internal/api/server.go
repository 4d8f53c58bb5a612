// Package api exposes the HTTP surface: streaming transcription and
// summarization uploads, interactive prompts over stored sessions, session
// CRUD, document ingest, and owner metrics. Long-running operations answer
// with wire-framed chunked responses so callers see progress as it happens.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minuted/minuted/internal/llm"
	"github.com/minuted/minuted/internal/storage"
	"github.com/minuted/minuted/internal/synthesis"
	"github.com/minuted/minuted/internal/transcriber"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Transcriber abstracts the transcription backend for the API layer.
type Transcriber interface {
	Relay(ctx context.Context, ownerID string, src io.Reader, onPartial func(id, text string)) (transcriber.Result, error)
	Heartbeat(ctx context.Context) bool
}

// ModelBackend abstracts the text-generation backend.
type ModelBackend interface {
	StreamChat(ctx context.Context, req llm.ChatRequest, onDelta func(string)) error
	ListModels(ctx context.Context) ([]llm.Model, error)
}

// Synthesizer runs prompt jobs over stored sessions.
type Synthesizer interface {
	Run(ctx context.Context, req synthesis.Request, onChunk func(string)) error
}

type Deps struct {
	Store        *storage.Store
	Transcriber  Transcriber
	LLM          ModelBackend
	Synth        Synthesizer
	DefaultModel string
}

// NewHandler builds the service router. Everything except /health requires a
// bearer API key resolving to an owner.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Store))

		r.Post("/v1/transcriptions", handleTranscribe(deps))
		r.Post("/v1/summaries", handleSummarize(deps))
		r.Post("/v1/prompt", handlePrompt(deps))
		r.Post("/v1/documents", handleIngestDocument(deps))

		r.Get("/v1/sessions", handleListSessions(deps))
		r.Get("/v1/sessions/{id}", handleGetSession(deps))
		r.Delete("/v1/sessions/{id}", handleDeleteSession(deps))

		r.Get("/v1/models", handleModels(deps))
		r.Get("/v1/metrics", handleMetrics(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transcriberState := "down"
		if deps.Transcriber != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if deps.Transcriber.Heartbeat(ctx) {
				transcriberState = "up"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":      "ok",
			"transcriber": transcriberState,
		})
	}
}

func handleModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := deps.LLM.ListModels(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to list models: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(llm.ModelList{
			Object: "list",
			Data:   models,
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
