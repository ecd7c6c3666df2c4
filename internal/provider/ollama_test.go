package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"talkbot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ndjsonServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
}

func collect(t *testing.T, stream domain.ChatStream) []domain.StreamChunk {
	t.Helper()
	var chunks []domain.StreamChunk
	for {
		chunk, err := stream.Recv(context.Background())
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		chunks = append(chunks, chunk)
		if chunk.Done {
			return chunks
		}
	}
}

func TestOllama_ChatStream(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"Hello"},"done":false}`,
		`{"message":{"role":"assistant","content":" there"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	})
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	stream, err := o.ChatStream(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Abort()

	chunks := collect(t, stream)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "Hello" || chunks[1].Content != " there" {
		t.Fatalf("unexpected contents: %+v", chunks)
	}
	if !chunks[2].Done {
		t.Fatal("expected last chunk to carry done")
	}
}

func TestOllama_ChatStreamThinkingField(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","thinking":"let me think"},"done":false}`,
		`{"message":{"role":"assistant","content":"Answer"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	})
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	stream, err := o.ChatStream(context.Background(), domain.ChatRequest{Think: true})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Abort()

	chunks := collect(t, stream)
	if !chunks[0].Thinking || chunks[0].Content != "let me think" {
		t.Fatalf("expected thinking chunk first, got %+v", chunks[0])
	}
	if chunks[1].Thinking {
		t.Fatal("expected answer chunk not to be thinking")
	}
}

func TestOllama_ChatStreamThinkSentinels(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"message":{"role":"assistant","content":"<think>"},"done":false}`,
		`{"message":{"role":"assistant","content":"reasoning here"},"done":false}`,
		`{"message":{"role":"assistant","content":"</think>"},"done":false}`,
		`{"message":{"role":"assistant","content":"Visible answer"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	})
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	stream, err := o.ChatStream(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Abort()

	chunks := collect(t, stream)
	if !chunks[0].Thinking || !chunks[1].Thinking || !chunks[2].Thinking {
		t.Fatalf("expected sentinel span to be thinking, got %+v", chunks[:3])
	}
	if chunks[3].Thinking || chunks[3].Content != "Visible answer" {
		t.Fatalf("expected visible answer after sentinel close, got %+v", chunks[3])
	}
}

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message: ollamaMsg{Role: "assistant", Content: "done"},
			Done:    true,
		})
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	out, err := o.Complete(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "done" {
		t.Fatalf("expected 'done', got %q", out)
	}
}

func TestOllama_Models(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:8b"},{"name":"qwen3:4b"}]}`)
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	names, err := o.Models(context.Background())
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(names) != 2 || names[0] != "llama3.1:8b" {
		t.Fatalf("unexpected models: %v", names)
	}
}

func TestOllama_Show(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/show" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"capabilities":["completion","vision"]}`)
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	info, err := o.Show(context.Background(), "llava")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !info.Has("vision") {
		t.Fatal("expected vision capability")
	}
	if info.Has("thinking") {
		t.Fatal("did not expect thinking capability")
	}
}

func TestOllama_AbortDuringRecv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"partial"},"done":false}`)
		w.(http.Flusher).Flush()
		// hold the stream open until the client tears it down
		<-r.Context().Done()
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	stream, err := o.ChatStream(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	if _, err := stream.Recv(context.Background()); err != nil {
		t.Fatalf("first recv: %v", err)
	}

	// abort from another goroutine while the consumer is blocked in Recv
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

func TestOllama_StreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: discardLogger()})
	if _, err := o.ChatStream(context.Background(), domain.ChatRequest{}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
