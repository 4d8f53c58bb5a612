// Package synthesis answers a user prompt over a set of stored sessions with
// a streaming map-reduce: the merged session text is partitioned into
// bounded blocks, each block is summarized by one streamed model call (map),
// and a final streamed call synthesizes the block summaries into one answer
// (reduce). Every model token is forwarded to the caller as it arrives.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minuted/minuted/internal/llm"
	"github.com/minuted/minuted/internal/storage"
)

// DefaultBlockChars bounds one map block when no size is configured.
const DefaultBlockChars = 2000

// SessionSource loads session content restricted to the requesting owner.
// Ids the owner does not hold are dropped, not errored.
type SessionSource interface {
	LoadSessionContent(ownerID string, ids []string) ([]storage.SessionContent, error)
}

// Streamer issues one streamed model call, invoking onDelta per token.
type Streamer interface {
	StreamChat(ctx context.Context, req llm.ChatRequest, onDelta func(string)) error
}

// Request describes one synthesis job.
type Request struct {
	OwnerID     string
	Prompt      string
	Model       string
	Temperature float32
	SessionIDs  []string
}

// Engine drives synthesis jobs. Blocks are processed strictly sequentially:
// only one model call is ever in flight, so the tokens the caller observes
// are exactly the model's tokens in block order, then the reduce call's.
type Engine struct {
	sessions   SessionSource
	model      Streamer
	blockChars int
	logger     *slog.Logger
}

// NewEngine creates an Engine. blockChars <= 0 selects the default.
func NewEngine(sessions SessionSource, model Streamer, blockChars int) *Engine {
	if blockChars <= 0 {
		blockChars = DefaultBlockChars
	}
	return &Engine{
		sessions:   sessions,
		model:      model,
		blockChars: blockChars,
		logger:     slog.Default(),
	}
}

// Run executes one job to completion, forwarding every model token to
// onChunk in order. It returns nil once the reduce call's stream ends, or
// the first error encountered; there is no retry, and tokens already
// forwarded for earlier blocks remain valid. Cancelling ctx aborts the
// in-flight model call and prevents any further block from starting.
func (e *Engine) Run(ctx context.Context, req Request, onChunk func(string)) error {
	return e.run(ctx, req, onChunk, onChunk)
}

// Answer runs one job without streaming and returns only the reduce call's
// output; map-phase tokens are discarded.
func (e *Engine) Answer(ctx context.Context, req Request) (string, error) {
	var sb strings.Builder
	err := e.run(ctx, req, func(string) {}, func(delta string) {
		sb.WriteString(delta)
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (e *Engine) run(ctx context.Context, req Request, onMapChunk, onReduceChunk func(string)) error {
	contents, err := e.sessions.LoadSessionContent(req.OwnerID, req.SessionIDs)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	merged := mergeContent(contents)
	blocks := partition(merged, e.blockChars)
	e.logger.Debug("synthesis job loaded",
		"owner_id", req.OwnerID,
		"sessions_requested", len(req.SessionIDs),
		"sessions_loaded", len(contents),
		"corpus_chars", len(merged),
		"blocks", len(blocks),
	)

	blockSummaries := make([]string, len(blocks))
	for i, block := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}

		var sb strings.Builder
		call := mapRequest(req.Model, req.Temperature, i, len(blocks), block)
		if err := e.model.StreamChat(ctx, call, func(delta string) {
			sb.WriteString(delta)
			onMapChunk(delta)
		}); err != nil {
			return fmt.Errorf("summarizing block %d: %w", i, err)
		}
		blockSummaries[i] = sb.String()
		e.logger.Debug("block summarized", "block", i, "summary_chars", sb.Len())
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	call := reduceRequest(req.Model, req.Temperature, req.Prompt, blockSummaries)
	if err := e.model.StreamChat(ctx, call, onReduceChunk); err != nil {
		return fmt.Errorf("synthesizing answer: %w", err)
	}
	return nil
}

// Job is a handle on a running synthesis job.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs a job in the background and returns its handle.
func (e *Engine) Start(ctx context.Context, req Request, onChunk func(string)) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		defer cancel()
		j.err = e.Run(ctx, req, onChunk)
	}()
	return j
}

// Dispose cancels the currently active model call and prevents further
// blocks from starting. Safe to call multiple times and after completion.
func (j *Job) Dispose() {
	j.cancel()
}

// Wait blocks until the job finishes and returns its outcome.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}
