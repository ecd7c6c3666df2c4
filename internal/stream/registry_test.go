package stream

import (
	"context"
	"testing"

	"talkbot/internal/domain"
)

type spyStream struct {
	aborted int
}

func (s *spyStream) Recv(ctx context.Context) (domain.StreamChunk, error) {
	return domain.StreamChunk{}, domain.ErrAborted
}

func (s *spyStream) Abort() { s.aborted++ }

func TestRegistry_PushAndGet(t *testing.T) {
	r := NewRegistry()
	r.Push(&Request{UUID: "a", FromID: 1, ChatID: 2})

	req := r.Get("a")
	if req == nil {
		t.Fatal("expected to find pushed request")
	}
	if req.FromID != 1 || req.ChatID != 2 || req.Done {
		t.Fatalf("unexpected request state: %+v", req)
	}

	if r.Get("missing") != nil {
		t.Fatal("expected nil for unknown uuid")
	}
}

func TestRegistry_DoneForUnknown(t *testing.T) {
	r := NewRegistry()
	if !r.Done("missing") {
		t.Fatal("expected unknown requests to count as done")
	}
}

func TestRegistry_Finish(t *testing.T) {
	r := NewRegistry()
	r.Push(&Request{UUID: "a"})

	if r.Done("a") {
		t.Fatal("expected fresh request not to be done")
	}
	r.Finish("a")
	if !r.Done("a") {
		t.Fatal("expected finished request to be done")
	}
}

func TestRegistry_AbortIdempotent(t *testing.T) {
	r := NewRegistry()
	spy := &spyStream{}
	r.Push(&Request{UUID: "a", Stream: spy})

	if !r.Abort("a") {
		t.Fatal("expected first abort to succeed")
	}
	if spy.aborted != 1 {
		t.Fatalf("expected stream abort to be called once, got %d", spy.aborted)
	}
	if r.Abort("a") {
		t.Fatal("expected second abort to report false")
	}
	if spy.aborted != 1 {
		t.Fatalf("expected no further stream aborts, got %d", spy.aborted)
	}
	if !r.Done("a") {
		t.Fatal("expected aborted request to be done")
	}
}

func TestRegistry_AbortUnknown(t *testing.T) {
	r := NewRegistry()
	if r.Abort("missing") {
		t.Fatal("expected abort of unknown uuid to report false")
	}
}

func TestRegistry_AbortAfterFinish(t *testing.T) {
	r := NewRegistry()
	spy := &spyStream{}
	r.Push(&Request{UUID: "a", Stream: spy})
	r.Finish("a")

	if r.Abort("a") {
		t.Fatal("expected abort after finish to report false")
	}
	if spy.aborted != 0 {
		t.Fatal("expected finished stream not to be aborted")
	}
}
