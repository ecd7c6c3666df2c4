package commands

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"talkbot/internal/command"
)

func banRequest(fromID, targetID int64) *command.Request {
	req := groupRequest(fromID)
	req.Msg.ReplyToMessage = &tgbotapi.Message{
		MessageID: 2,
		Chat:      req.Msg.Chat,
		From:      &tgbotapi.User{ID: targetID},
	}
	return req
}

func TestBan_CreatorProtected(t *testing.T) {
	env, client := testEnv(t)
	env.Cfg.General.CreatorID = 7

	if err := banCmd().Handler(context.Background(), env, banRequest(42, 7)); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if len(client.banned) != 0 {
		t.Fatalf("expected no ban call, got %v", client.banned)
	}
	if len(client.replies) != 1 || client.replies[0] != "I will not ban my creator." {
		t.Fatalf("expected the fixed creator refusal, got %v", client.replies)
	}
}

func TestBan_BotAdminProtected(t *testing.T) {
	env, client := testEnv(t)
	if _, err := env.Mod.AddAdmin(context.Background(), 77); err != nil {
		t.Fatalf("add admin: %v", err)
	}

	if err := banCmd().Handler(context.Background(), env, banRequest(42, 77)); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if len(client.banned) != 0 {
		t.Fatalf("expected no ban call, got %v", client.banned)
	}
}

func TestBan_SelfTargetLeaves(t *testing.T) {
	env, client := testEnv(t)

	if err := banCmd().Handler(context.Background(), env, banRequest(42, testBotID)); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if len(client.banned) != 0 {
		t.Fatalf("expected no ban call, got %v", client.banned)
	}
	if len(client.left) != 1 || client.left[0] != -100 {
		t.Fatalf("expected the bot to leave the chat, got %v", client.left)
	}
}

func TestBan_RegularTarget(t *testing.T) {
	env, client := testEnv(t)

	if err := banCmd().Handler(context.Background(), env, banRequest(42, 55)); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if len(client.banned) != 1 || client.banned[0] != 55 {
		t.Fatalf("expected 55 banned, got %v", client.banned)
	}
}

func TestTargetID_NumericArg(t *testing.T) {
	list, err := command.Resolve([]*command.Definition{
		{Names: []string{"mute"}, Args: command.ArgsOptional},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	def, m := list.Match("/mute 12345", "TestBot")
	if def == nil {
		t.Fatal("expected match")
	}
	req := &command.Request{Msg: &tgbotapi.Message{}, Match: m}
	id, ok := targetID(req)
	if !ok || id != 12345 {
		t.Fatalf("expected id 12345, got %d %v", id, ok)
	}
}

func TestTargetID_Reply(t *testing.T) {
	list, _ := command.Resolve([]*command.Definition{
		{Names: []string{"mute"}, Args: command.ArgsOptional},
	})
	def, m := list.Match("/mute", "TestBot")
	if def == nil {
		t.Fatal("expected match")
	}

	msg := &tgbotapi.Message{
		ReplyToMessage: &tgbotapi.Message{From: &tgbotapi.User{ID: 77}},
	}
	id, ok := targetID(&command.Request{Msg: msg, Match: m})
	if !ok || id != 77 {
		t.Fatalf("expected reply author id, got %d %v", id, ok)
	}
}

func TestTargetID_Neither(t *testing.T) {
	list, _ := command.Resolve([]*command.Definition{
		{Names: []string{"mute"}, Args: command.ArgsOptional},
	})
	_, m := list.Match("/mute", "TestBot")

	if _, ok := targetID(&command.Request{Msg: &tgbotapi.Message{}, Match: m}); ok {
		t.Fatal("expected no target without arg or reply")
	}
}

func TestTargetID_BadArg(t *testing.T) {
	list, _ := command.Resolve([]*command.Definition{
		{Names: []string{"mute"}, Args: command.ArgsOptional},
	})
	_, m := list.Match("/mute notanumber", "TestBot")

	msg := &tgbotapi.Message{
		ReplyToMessage: &tgbotapi.Message{From: &tgbotapi.User{ID: 77}},
	}
	// a malformed argument is an error, not a silent fall-through to the reply
	if _, ok := targetID(&command.Request{Msg: msg, Match: m}); ok {
		t.Fatal("expected malformed id to be rejected")
	}
}
