package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/minuted/minuted/internal/analytics"
	"github.com/minuted/minuted/internal/storage"
	"github.com/minuted/minuted/internal/synthesis"
)

// MCPSynthesizer answers a prompt over stored sessions without streaming.
type MCPSynthesizer interface {
	Answer(ctx context.Context, req synthesis.Request) (string, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store        *storage.Store
	Synth        MCPSynthesizer // optional; if nil, query_sessions returns an error
	DefaultModel string
}

// NewMCPServer creates an MCP server exposing the stored sessions to agent
// tooling: listing, free-form querying, and metrics.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"minuted",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("minuted — transcribed recording sessions: list, query, and measure an owner's stored sessions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List an owner's stored sessions, newest first."),
			mcp.WithString("owner_id", mcp.Description("Owner whose sessions to list"), mcp.Required()),
		),
		mcpListSessions(deps),
	)

	s.AddTool(
		mcp.NewTool("query_sessions",
			mcp.WithDescription("Answer a question over an owner's stored sessions using map-reduce synthesis."),
			mcp.WithString("owner_id", mcp.Description("Owner whose sessions to query"), mcp.Required()),
			mcp.WithString("prompt", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithArray("session_ids", mcp.Description("Session ids to restrict the query to (default: all sessions)")),
			mcp.WithString("model", mcp.Description("Model to use (default: configured model)")),
		),
		mcpQuerySessions(deps),
	)

	s.AddTool(
		mcp.NewTool("session_metrics",
			mcp.WithDescription("Compute dashboard metrics over an owner's sessions: counts, text statistics, activity heatmaps."),
			mcp.WithString("owner_id", mcp.Description("Owner whose sessions to measure"), mcp.Required()),
		),
		mcpSessionMetrics(deps),
	)

	return s
}

func mcpListSessions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}

		sessions, err := deps.Store.ListSessions(owner)
		if err != nil {
			return mcpError(fmt.Sprintf("listing sessions failed: %v", err)), nil
		}
		if len(sessions) == 0 {
			return mcpText("[]"), nil
		}

		type sessionResult struct {
			ID              string `json:"id"`
			TranscriptionID string `json:"transcription_id,omitempty"`
			SummaryID       string `json:"summary_id,omitempty"`
			CreatedAt       string `json:"created_at"`
		}
		results := make([]sessionResult, len(sessions))
		for i, s := range sessions {
			results[i] = sessionResult{
				ID:              s.ID,
				TranscriptionID: s.TranscriptionID,
				SummaryID:       s.SummaryID,
				CreatedAt:       s.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal sessions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpQuerySessions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Synth == nil {
			return mcpError("querying not available: no model backend configured"), nil
		}

		owner, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		sessionIDs := req.GetStringSlice("session_ids", nil)
		if len(sessionIDs) == 0 {
			sessions, err := deps.Store.ListSessions(owner)
			if err != nil {
				return mcpError(fmt.Sprintf("listing sessions failed: %v", err)), nil
			}
			for _, s := range sessions {
				sessionIDs = append(sessionIDs, s.ID)
			}
		}

		model := req.GetString("model", deps.DefaultModel)

		answer, err := deps.Synth.Answer(ctx, synthesis.Request{
			OwnerID:    owner,
			Prompt:     prompt,
			Model:      model,
			SessionIDs: sessionIDs,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return mcpText(answer), nil
	}
}

func mcpSessionMetrics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}

		sessions, err := deps.Store.ListSessions(owner)
		if err != nil {
			return mcpError(fmt.Sprintf("listing sessions failed: %v", err)), nil
		}
		ids := make([]string, len(sessions))
		for i, s := range sessions {
			ids[i] = s.ID
		}
		contents, err := deps.Store.LoadSessionContent(owner, ids)
		if err != nil {
			return mcpError(fmt.Sprintf("loading session content failed: %v", err)), nil
		}

		b, err := json.Marshal(analytics.Compute(sessions, contents))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal metrics: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
