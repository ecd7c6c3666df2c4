package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"talkbot/internal/domain"
)

func sseServer(t *testing.T, wantAuth string, events []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if wantAuth != "" && r.Header.Get("Authorization") != wantAuth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAI_ChatStream(t *testing.T) {
	srv := sseServer(t, "Bearer test-key", []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	})
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, APIKey: "test-key", Logger: discardLogger()})
	stream, err := o.ChatStream(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Abort()

	chunks := collect(t, stream)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content+chunks[1].Content != "Hello" {
		t.Fatalf("unexpected contents: %+v", chunks)
	}
	if !chunks[2].Done {
		t.Fatal("expected finish_reason to mark done")
	}
}

func TestOpenAI_ChatStreamReasoning(t *testing.T) {
	srv := sseServer(t, "", []string{
		`{"choices":[{"delta":{"reasoning_content":"hmm"}}]}`,
		`{"choices":[{"delta":{"content":"Answer"}}]}`,
	})
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: discardLogger()})
	stream, err := o.ChatStream(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Abort()

	chunks := collect(t, stream)
	if !chunks[0].Thinking || chunks[0].Content != "hmm" {
		t.Fatalf("expected reasoning chunk, got %+v", chunks[0])
	}
	if chunks[1].Thinking {
		t.Fatal("expected answer chunk not to be thinking")
	}
}

func TestOpenAI_AbortDuringRecv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: discardLogger()})
	stream, err := o.ChatStream(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	if _, err := stream.Recv(context.Background()); err != nil {
		t.Fatalf("first recv: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		stream.Abort()
	}()

	for {
		_, err := stream.Recv(context.Background())
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAborted) {
			t.Fatalf("expected ErrAborted after abort, got %v", err)
		}
		return
	}
}

func TestOpenAI_BadKey(t *testing.T) {
	srv := sseServer(t, "Bearer right", nil)
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, APIKey: "wrong", Logger: discardLogger()})
	if _, err := o.ChatStream(context.Background(), domain.ChatRequest{}); err == nil {
		t.Fatal("expected error for rejected key")
	}
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"full answer"}}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: discardLogger()})
	out, err := o.Complete(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "full answer" {
		t.Fatalf("expected 'full answer', got %q", out)
	}
}

func TestOpenAI_ImageParts(t *testing.T) {
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: discardLogger()})
	_, err := o.Complete(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: "what is this", Images: []string{"aGVsbG8="}}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}
	parts, ok := got.Messages[0].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %#v", got.Messages[0].Content)
	}
}
