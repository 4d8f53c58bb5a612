// Package transcriber binds a client byte source to the transcription
// backend's duplex stream: upload frames go up, partial transcript frames
// come back while the upload is still being processed.
package transcriber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/minuted/minuted/internal/chunker"
)

// Frame is one upstream unit on the duplex stream. Every frame is tagged
// with the owner so multi-tenant frames stay distinguishable; Done marks the
// half-close after the last data frame.
type Frame struct {
	UserID string `json:"user_id"`
	Data   []byte `json:"data,omitempty"`
	Done   bool   `json:"done,omitempty"`
}

// Transcript is one result unit coming back from the backend. Time is unix
// milliseconds at segment production; the first and last frame's times
// determine the recording's duration.
type Transcript struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Time int64  `json:"time"`
}

// Result is the assembled outcome of one relay: all transcript texts in
// arrival order and the timing metadata derived from them.
type Result struct {
	ID         string
	Text       string
	DurationMs int64
}

// Client talks to the transcription backend.
type Client struct {
	url        string
	frameBytes int
	dialer     *websocket.Dialer
	httpClient *http.Client
}

// New creates a Client for the backend at url (ws:// or wss://). frameBytes
// bounds the size of upload frames; <= 0 selects the 64 KiB default.
func New(url string, frameBytes int) *Client {
	if frameBytes <= 0 {
		frameBytes = chunker.DefaultFrameBytes
	}
	return &Client{
		url:        strings.TrimRight(url, "/"),
		frameBytes: frameBytes,
		dialer:     websocket.DefaultDialer,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Relay streams src to the backend and invokes onPartial for every
// transcript frame as it arrives, before the whole upload has been
// processed. It returns the assembled result once the backend closes its
// side cleanly.
//
// The upload loop and the result loop run concurrently; a failure on either
// side tears both down along with the connection, and the caller must treat
// any error as "no record produced" — nothing is persisted here. Cancelling
// ctx aborts the stream within one read/write step. Once Relay returns,
// onPartial is never invoked again.
//
// A source yielding zero bytes still half-closes and completes cleanly with
// an empty result.
func (c *Client) Relay(ctx context.Context, ownerID string, src io.Reader, onPartial func(id, text string)) (Result, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url+"/transcribe", nil)
	if err != nil {
		return Result{}, fmt.Errorf("dialing transcriber: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var frames []Transcript

	g, gctx := errgroup.WithContext(ctx)

	// Force-close the connection on cancellation or on the first loop
	// failure so the other loop unblocks; no orphaned half-open stream.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-gctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	g.Go(func() error {
		for data, err := range chunker.ReaderFrames(src, c.frameBytes) {
			if err != nil {
				return fmt.Errorf("reading source: %w", err)
			}
			if err := conn.WriteJSON(Frame{UserID: ownerID, Data: data}); err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}
		}
		if err := conn.WriteJSON(Frame{UserID: ownerID, Done: true}); err != nil {
			return fmt.Errorf("closing upload side: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			var tr Transcript
			if err := conn.ReadJSON(&tr); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return fmt.Errorf("reading transcript: %w", err)
			}
			frames = append(frames, tr)
			if onPartial != nil {
				onPartial(tr.ID, tr.Text)
			}
		}
	})

	if err := g.Wait(); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}

	return assemble(frames), nil
}

// assemble joins transcript frames in arrival order and derives the
// recording duration from the first and last frame's timestamps.
func assemble(frames []Transcript) Result {
	if len(frames) == 0 {
		return Result{}
	}

	texts := make([]string, len(frames))
	for i, f := range frames {
		texts[i] = f.Text
	}

	return Result{
		ID:         frames[len(frames)-1].ID,
		Text:       strings.Join(texts, " "),
		DurationMs: frames[len(frames)-1].Time - frames[0].Time,
	}
}

// Heartbeat reports whether the backend answers its health probe. The probe
// is stateless and uses plain HTTP on the backend's host.
func (c *Client) Heartbeat(ctx context.Context) bool {
	url := c.url + "/healthz"
	url = strings.Replace(url, "wss://", "https://", 1)
	url = strings.Replace(url, "ws://", "http://", 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
