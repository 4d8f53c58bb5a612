package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseBody(deltas ...string) string {
	var sb strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&sb, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

func TestStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream=true")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody("Hello", " world"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	var got []string
	err := c.StreamChat(context.Background(), ChatRequest{
		Model:    "deepseek-chat",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(delta string) {
		got = append(got, delta)
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	if strings.Join(got, "") != "Hello world" {
		t.Errorf("deltas = %q, want %q", got, "Hello world")
	}
}

func TestStreamChatAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, sseBody())
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	if err := c.StreamChat(context.Background(), ChatRequest{Model: "m"}, func(string) {}); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
}

// TestStreamChatUpstreamError verifies a non-2xx response becomes a single
// returned error and the callback never fires.
func TestStreamChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"backend down"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	var calls int
	err := c.StreamChat(context.Background(), ChatRequest{Model: "m"}, func(string) { calls++ })
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want it to mention the status", err)
	}
	if calls != 0 {
		t.Errorf("onDelta called %d times on failed request, want 0", calls)
	}
}

// TestStreamChatSkipsMalformedLines verifies keep-alives and garbage data
// lines are ignored rather than failing the stream.
func TestStreamChatSkipsMalformedLines(t *testing.T) {
	body := ": keep-alive\n\n" +
		"data: not json\n\n" +
		"data: {\"choices\":[]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
		"data: [DONE]\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	var got string
	if err := c.StreamChat(context.Background(), ChatRequest{Model: "m"}, func(d string) { got += d }); err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Errorf("deltas = %q, want %q", got, "ok")
	}
}

func TestStreamChatStopsAtDone(t *testing.T) {
	body := sseBody("before") + "data: {\"choices\":[{\"delta\":{\"content\":\"after\"}}]}\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	var got string
	if err := c.StreamChat(context.Background(), ChatRequest{Model: "m"}, func(d string) { got += d }); err != nil {
		t.Fatal(err)
	}
	if got != "before" {
		t.Errorf("deltas = %q, want %q (nothing after sentinel)", got, "before")
	}
}

// TestStreamChatContextCancellation verifies disposal unsubscribes from the
// upstream call promptly instead of waiting for more data.
func TestStreamChatContextCancellation(t *testing.T) {
	handlerStarted := make(chan struct{})
	handlerDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		close(handlerStarted)
		<-handlerDone
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		c := NewClient(srv.URL, "")
		done <- c.StreamChat(ctx, ChatRequest{Model: "m"}, func(string) {})
	}()

	<-handlerStarted
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after context cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StreamChat did not return promptly after cancellation")
	}

	close(handlerDone)
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseBody("a", "b", "c"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	got, err := c.Complete(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc" {
		t.Errorf("Complete = %q, want %q", got, "abc")
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ModelList{
			Object: "list",
			Data:   []Model{{ID: "deepseek-chat"}, {ID: "deepseek-reasoner"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ID != "deepseek-chat" {
		t.Errorf("models = %+v", models)
	}
}

func TestListModelsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ModelList{Object: "list", Data: nil})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 0 {
		t.Errorf("got %d models, want 0", len(models))
	}
}
