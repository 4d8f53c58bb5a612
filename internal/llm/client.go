// Package llm talks to an OpenAI-compatible text-generation backend and
// exposes streamed completions as a callback per token delta.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 60 * time.Second
	streamingTimeout = 300 * time.Second
	doneSentinel     = "[DONE]"
)

// Client communicates with the text-generation API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0, // per-request timeouts via context
		},
	}
}

// StreamChat issues one streamed completion call and invokes onDelta for
// every non-empty token delta, in arrival order. It returns after the
// upstream sent its done sentinel or closed the stream. A non-2xx response
// or a broken stream is returned as a single error; onDelta is never called
// after StreamChat returns. Cancelling ctx aborts the in-flight call
// immediately.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onDelta func(string)) error {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, streamingTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:")
			if ok {
				data = strings.TrimSpace(data)
				if data == doneSentinel {
					return nil
				}
				if delta := parseDelta(data); delta != "" {
					onDelta(delta)
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
	}
}

// parseDelta extracts the content delta from one SSE data payload. Malformed
// payloads are skipped; the stream carries keep-alives and metadata lines
// that are not deltas.
func parseDelta(data string) string {
	var sd streamDelta
	if err := json.Unmarshal([]byte(data), &sd); err != nil {
		return ""
	}
	if len(sd.Choices) == 0 {
		return ""
	}
	return sd.Choices[0].Delta.Content
}

// Complete issues one streamed call and returns the concatenated deltas.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	var sb strings.Builder
	if err := c.StreamChat(ctx, req, func(delta string) {
		sb.WriteString(delta)
	}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ListModels returns the models offered by the backend.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}

	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
