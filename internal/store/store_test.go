package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"talkbot/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMessageRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := domain.StoredMessage{
		ChatID:           -100,
		MessageID:        1,
		ReplyToMessageID: 0,
		FromID:           42,
		Text:             "hello",
		Date:             1700000000,
	}
	if err := s.PutMessage(ctx, in); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := s.GetMessage(ctx, -100, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out == nil || out.Text != "hello" || out.FromID != 42 {
		t.Fatalf("unexpected message: %+v", out)
	}
}

func TestGetMessage_Missing(t *testing.T) {
	s := testStore(t)
	out, err := s.GetMessage(context.Background(), -100, 12345)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil for missing message, got %+v", out)
	}
}

func TestPutMessage_PreservesPhotoPath(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.PutMessage(ctx, domain.StoredMessage{
		ChatID: -100, MessageID: 1, FromID: 42, Text: "photo", PhotoPath: "/data/p.jpg",
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// a later upsert without a photo must not erase the cached path
	if err := s.PutMessage(ctx, domain.StoredMessage{
		ChatID: -100, MessageID: 1, FromID: 42, Text: "edited caption",
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := s.GetMessage(ctx, -100, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Text != "edited caption" {
		t.Fatalf("expected updated text, got %q", out.Text)
	}
	if out.PhotoPath != "/data/p.jpg" {
		t.Fatalf("expected photo path preserved, got %q", out.PhotoPath)
	}
}

func TestUserRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.PutUser(ctx, domain.StoredUser{ID: 42, FirstName: "Ada", Username: "ada"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	u, err := s.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u == nil || u.FirstName != "Ada" {
		t.Fatalf("unexpected user: %+v", u)
	}

	// upsert updates
	if err := s.PutUser(ctx, domain.StoredUser{ID: 42, FirstName: "Ada", LastName: "Lovelace"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	u, _ = s.GetUser(ctx, 42)
	if u.LastName != "Lovelace" {
		t.Fatalf("expected updated last name, got %q", u.LastName)
	}
}

func TestModeration_PersistAcrossReopen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mod, err := NewModeration(ctx, s)
	if err != nil {
		t.Fatalf("moderation: %v", err)
	}

	if changed, err := mod.AddAdmin(ctx, 7); err != nil || !changed {
		t.Fatalf("add admin: changed=%v err=%v", changed, err)
	}
	if changed, _ := mod.AddAdmin(ctx, 7); changed {
		t.Fatal("expected repeated add to report unchanged")
	}
	if changed, err := mod.Mute(ctx, 8); err != nil || !changed {
		t.Fatalf("mute: changed=%v err=%v", changed, err)
	}
	s.Close()

	s2, err := Open(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	mod2, err := NewModeration(ctx, s2)
	if err != nil {
		t.Fatalf("moderation reload: %v", err)
	}
	if !mod2.IsAdmin(7) {
		t.Fatal("expected admin to survive reopen")
	}
	if !mod2.IsMuted(8) {
		t.Fatal("expected mute to survive reopen")
	}

	if changed, err := mod2.Unmute(ctx, 8); err != nil || !changed {
		t.Fatalf("unmute: changed=%v err=%v", changed, err)
	}
	if mod2.IsMuted(8) {
		t.Fatal("expected user to be unmuted")
	}
}

func TestCollectReplyChain(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	botID := int64(999)

	if err := s.PutUser(ctx, domain.StoredUser{ID: 42, FirstName: "Ada"}); err != nil {
		t.Fatalf("put user: %v", err)
	}

	msgs := []domain.StoredMessage{
		{ChatID: -100, MessageID: 1, FromID: 42, Text: "bot, first question"},
		{ChatID: -100, MessageID: 2, ReplyToMessageID: 1, FromID: botID, Text: "first answer"},
		{ChatID: -100, MessageID: 3, ReplyToMessageID: 2, FromID: 42, Text: "follow-up"},
	}
	for _, m := range msgs {
		if err := s.PutMessage(ctx, m); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	trigger := &msgs[2]
	cut := func(text string) string {
		if len(text) > 5 && text[:5] == "bot, " {
			return text[5:]
		}
		return text
	}

	parts, err := s.CollectReplyChain(ctx, trigger, botID, 10, cut)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %+v", len(parts), parts)
	}

	// newest first
	if parts[0].Content != "follow-up" || parts[0].Bot {
		t.Fatalf("unexpected first part: %+v", parts[0])
	}
	if parts[1].Content != "first answer" || !parts[1].Bot {
		t.Fatalf("unexpected second part: %+v", parts[1])
	}
	if parts[2].Content != "first question" {
		t.Fatalf("expected address prefix stripped, got %q", parts[2].Content)
	}
	if parts[2].Name != "Ada" {
		t.Fatalf("expected author name resolved, got %q", parts[2].Name)
	}
}

func TestCollectReplyChain_Limit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	prev := 0
	for i := 1; i <= 10; i++ {
		if err := s.PutMessage(ctx, domain.StoredMessage{
			ChatID: -100, MessageID: i, ReplyToMessageID: prev, FromID: 42, Text: "m",
		}); err != nil {
			t.Fatalf("put: %v", err)
		}
		prev = i
	}

	trigger, err := s.GetMessage(ctx, -100, 10)
	if err != nil || trigger == nil {
		t.Fatalf("get trigger: %v", err)
	}
	parts, err := s.CollectReplyChain(ctx, trigger, 999, 3, nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected chain cut at limit 3, got %d", len(parts))
	}
}

func TestIDSets(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddID(ctx, "admins", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddID(ctx, "admins", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddID(ctx, "muted", 3); err != nil {
		t.Fatalf("add: %v", err)
	}

	ids, err := s.LoadIDs(ctx, "admins")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 admins, got %v", ids)
	}

	if err := s.RemoveID(ctx, "admins", 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ids, _ = s.LoadIDs(ctx, "admins")
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected only admin 2, got %v", ids)
	}
}
