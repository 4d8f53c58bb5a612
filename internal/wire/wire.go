// Package wire frames live-response events for chunked HTTP delivery.
//
// Each event is one self-delimited unit: the base64 encoding of its JSON
// body followed by a newline. Units survive arbitrary split points in the
// underlying byte stream; the decoder buffers partial tails and yields only
// whole units.
package wire

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Status identifies the kind of a live-response event.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusChunk      Status = "chunk"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Event is one unit on a live response stream. Result carries incremental
// text for chunk events and the message for error events. ID is an optional
// correlation id (the transcription id on upload streams).
type Event struct {
	Status Status `json:"status"`
	Result string `json:"result,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusError
}

// Encode renders a single wire unit.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	unit := make([]byte, base64.StdEncoding.EncodedLen(len(body))+1)
	base64.StdEncoding.Encode(unit, body)
	unit[len(unit)-1] = '\n'
	return unit, nil
}

// Decode parses a single wire unit (with or without its trailing newline).
func Decode(unit []byte) (Event, error) {
	if n := len(unit); n > 0 && unit[n-1] == '\n' {
		unit = unit[:n-1]
	}
	body := make([]byte, base64.StdEncoding.DecodedLen(len(unit)))
	n, err := base64.StdEncoding.Decode(body, unit)
	if err != nil {
		return Event{}, fmt.Errorf("decoding unit: %w", err)
	}
	var e Event
	if err := json.Unmarshal(body[:n], &e); err != nil {
		return Event{}, fmt.Errorf("unmarshaling event: %w", err)
	}
	return e, nil
}

// Encoder writes wire units to an HTTP response, flushing after each unit so
// the caller sees events as they happen. It is safe for use from the single
// goroutine driving a response; Close makes later writes no-ops so a race
// between job teardown and a final write cannot crash the stream.
type Encoder struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
	final   bool
}

// NewEncoder wraps w. If w implements http.Flusher every unit is flushed
// through immediately.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// Write emits one event. After a terminal event or Close, further writes are
// swallowed: the producer side treats a second terminal write as a benign
// race, not a failure. Transport write errors close the encoder.
func (enc *Encoder) Write(e Event) error {
	enc.mu.Lock()
	defer enc.mu.Unlock()

	if enc.closed || enc.final {
		return nil
	}

	unit, err := Encode(e)
	if err != nil {
		return err
	}
	if _, err := enc.w.Write(unit); err != nil {
		enc.closed = true
		return fmt.Errorf("writing unit: %w", err)
	}
	if enc.flusher != nil {
		enc.flusher.Flush()
	}
	if e.Terminal() {
		enc.final = true
	}
	return nil
}

// Close marks the encoder finished. Idempotent.
func (enc *Encoder) Close() {
	enc.mu.Lock()
	enc.closed = true
	enc.mu.Unlock()
}

// ErrTruncated is returned by Decoder.Next when the stream ends inside a unit
// before any terminal event was seen.
var ErrTruncated = errors.New("wire: stream ended mid-unit")

// Decoder reads wire units from a byte stream. It tolerates units split
// across reads and stops after the first terminal event.
type Decoder struct {
	r    *bufio.Reader
	done bool
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next whole event. After a terminal event it returns
// io.EOF without reading further, honoring the contract that the consumer
// stops once the producer has finished.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}

	line, err := d.r.ReadBytes('\n')
	if err == io.EOF {
		if len(line) > 0 {
			return Event{}, ErrTruncated
		}
		return Event{}, io.EOF
	}
	if err != nil {
		return Event{}, fmt.Errorf("reading unit: %w", err)
	}

	e, err := Decode(line)
	if err != nil {
		return Event{}, err
	}
	if e.Terminal() {
		d.done = true
	}
	return e, nil
}
