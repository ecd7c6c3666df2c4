package domain

import (
	"context"
	"errors"
)

// ErrAborted is returned by ChatStream.Recv after the stream has been
// cancelled through Abort. User-requested cancellation is an expected
// outcome, not a failure.
var ErrAborted = errors.New("stream aborted")

// ChatMessage is one turn of a conversation sent to a backend.
type ChatMessage struct {
	Role    string   `json:"role"` // system | user | assistant
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64-encoded
}

// ChatRequest is a generation request for a Backend.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
	Think    bool
}

// StreamChunk is one increment of a streamed generation.
type StreamChunk struct {
	Content  string
	Thinking bool // chunk belongs to a reasoning segment, not the answer
	Done     bool
}

// ChatStream is a pull-based token stream. Recv blocks for the next chunk;
// chunks are strictly sequential, one consumed to completion before the next
// is requested. Abort cancels the underlying request; a Recv racing with
// Abort returns ErrAborted.
type ChatStream interface {
	Recv(ctx context.Context) (StreamChunk, error)
	Abort()
}

// ModelInfo describes a backend model, including capability tags such as
// "vision" or "thinking".
type ModelInfo struct {
	Name         string
	Capabilities []string
}

func (m ModelInfo) Has(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Backend is an AI completion engine that produces token streams.
type Backend interface {
	Name() string
	ChatStream(ctx context.Context, req ChatRequest) (ChatStream, error)
	// Complete is the non-streaming one-shot variant.
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Healthy(ctx context.Context) error
}

// ModelBackend is an optional extension for backends that can enumerate and
// describe their models.
type ModelBackend interface {
	Backend
	Models(ctx context.Context) ([]string, error)
	Show(ctx context.Context, model string) (*ModelInfo, error)
}
