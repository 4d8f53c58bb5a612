package api

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minuted/minuted/internal/transcriber"
	"github.com/minuted/minuted/internal/wire"
)

func TestTranscribe(t *testing.T) {
	tr := &fakeTranscriber{
		partials: []partial{{"tr-1", "hello"}, {"tr-1", "world"}},
		result:   transcriber.Result{ID: "tr-1", Text: "hello world", DurationMs: 1200},
	}
	h, store := setupHandler(t, Deps{Transcriber: tr, LLM: &fakeBackend{}, Synth: &fakeSynth{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/transcriptions", strings.NewReader("audio-bytes"), testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if string(tr.received) != "audio-bytes" {
		t.Errorf("backend received %q, want the raw upload", tr.received)
	}

	events := decodeStream(t, rr.Body)
	last := requireTerminal(t, events, wire.StatusCompleted)
	if last.ID != "tr-1" {
		t.Errorf("completed id = %q, want tr-1", last.ID)
	}

	if events[0].Status != wire.StatusProcessing {
		t.Errorf("first event = %+v, want processing", events[0])
	}
	var chunkTexts []string
	for _, e := range events {
		if e.Status == wire.StatusChunk {
			chunkTexts = append(chunkTexts, e.Result)
			if e.ID != "tr-1" {
				t.Errorf("chunk id = %q, want tr-1", e.ID)
			}
		}
	}
	if strings.Join(chunkTexts, " ") != "hello world" {
		t.Errorf("chunks = %v", chunkTexts)
	}

	rec, err := store.GetTranscription("tr-1", testOwner)
	if err != nil {
		t.Fatalf("GetTranscription: %v", err)
	}
	if rec.Text != "hello world" || rec.DurationMs != 1200 {
		t.Errorf("record = %+v", rec)
	}

	sessions, err := store.ListSessions(testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].TranscriptionID != "tr-1" {
		t.Errorf("sessions = %+v, want one linked to tr-1", sessions)
	}
}

func TestTranscribeMultipart(t *testing.T) {
	tr := &fakeTranscriber{result: transcriber.Result{ID: "tr-2", Text: "ok"}}
	h, _ := setupHandler(t, Deps{Transcriber: tr, LLM: &fakeBackend{}, Synth: &fakeSynth{}})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "meeting.wav")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("wav-payload"))
	mw.Close()

	req := authReq(http.MethodPost, "/v1/transcriptions", &body, testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	events := decodeStream(t, rr.Body)
	requireTerminal(t, events, wire.StatusCompleted)

	if string(tr.received) != "wav-payload" {
		t.Errorf("backend received %q, want the file part", tr.received)
	}
}

// TestTranscribeEmptyUpload: a zero-byte recording still persists an
// addressable degenerate record.
func TestTranscribeEmptyUpload(t *testing.T) {
	tr := &fakeTranscriber{result: transcriber.Result{}}
	h, store := setupHandler(t, Deps{Transcriber: tr, LLM: &fakeBackend{}, Synth: &fakeSynth{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/transcriptions", nil, testToken))

	events := decodeStream(t, rr.Body)
	last := requireTerminal(t, events, wire.StatusCompleted)
	if last.ID == "" {
		t.Fatal("completed event carries no id for empty upload")
	}

	rec, err := store.GetTranscription(last.ID, testOwner)
	if err != nil {
		t.Fatalf("degenerate record not persisted: %v", err)
	}
	if rec.Text != "" {
		t.Errorf("record text = %q, want empty", rec.Text)
	}
}

// TestTranscribeRelayFailure: a backend failure surfaces as exactly one
// error unit and leaves nothing persisted.
func TestTranscribeRelayFailure(t *testing.T) {
	tr := &fakeTranscriber{
		partials: []partial{{"tr-x", "partial"}},
		err:      errors.New("backend gone"),
	}
	h, store := setupHandler(t, Deps{Transcriber: tr, LLM: &fakeBackend{}, Synth: &fakeSynth{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/v1/transcriptions", strings.NewReader("audio"), testToken))

	events := decodeStream(t, rr.Body)
	last := requireTerminal(t, events, wire.StatusError)
	if !strings.Contains(last.Result, "backend gone") {
		t.Errorf("error result = %q", last.Result)
	}

	sessions, err := store.ListSessions(testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions persisted after failure: %+v", sessions)
	}
}
