package command

import (
	"context"

	"talkbot/internal/telegram"
)

// Notifier delivers a denial explanation to the user. Message updates reply
// in the chat, callback updates raise an alert.
type Notifier func(text string)

// CheckRequirements evaluates every predicate the command demands against
// the request context. It returns true only when all of them hold. Silent
// gates (creator-only mode, chat whitelist) never call notify; the rest
// explain the denial.
func CheckRequirements(ctx context.Context, env *Env, reqs Requirements, rc *RequestContext, notify Notifier) bool {
	if notify == nil {
		notify = func(string) {}
	}

	// Global creator-only mode: everyone else is ignored without a word.
	if env.Cfg.General.OnlyForCreator && !env.IsCreator(rc.FromID) {
		return false
	}

	// Chat whitelist: when configured, updates from unlisted chats are
	// dropped silently unless the sender is privileged.
	wl := env.Cfg.General.ChatWhitelist
	if len(wl) > 0 && !wl.Contains(rc.ChatID) && !env.IsBotAdmin(rc.FromID) {
		return false
	}

	if reqs.RequiresBotCreator() && !env.IsCreator(rc.FromID) {
		notify("Only the bot owner can do that.")
		return false
	}

	if reqs.RequiresBotAdmin() && !env.IsBotAdmin(rc.FromID) {
		notify("You are not a bot administrator.")
		return false
	}

	if reqs.RequiresChat() && rc.IsPrivate() {
		notify("This command only works in group chats.")
		return false
	}

	if reqs.RequiresChatAdmin() && !rc.IsPrivate() {
		status, err := env.Client.ChatMemberStatus(rc.ChatID, rc.FromID)
		if err != nil {
			env.Logger.Warn("chat member lookup failed", "chat_id", rc.ChatID, "user_id", rc.FromID, "error", err)
			notify("Could not verify your chat permissions.")
			return false
		}
		if !telegram.IsMemberAdmin(status) {
			notify("You are not an administrator of this chat.")
			return false
		}
	}

	if reqs.RequiresBotChatAdmin() && !rc.IsPrivate() {
		botID := env.Client.Self().ID
		status, err := env.Client.ChatMemberStatus(rc.ChatID, botID)
		if err != nil {
			env.Logger.Warn("bot member lookup failed", "chat_id", rc.ChatID, "error", err)
			notify("Could not verify my chat permissions.")
			return false
		}
		if !telegram.IsMemberAdmin(status) {
			notify("I need to be an administrator of this chat to do that.")
			return false
		}
	}

	if reqs.RequiresReply() && rc.Reply == nil {
		notify("Reply to a message to use this command.")
		return false
	}

	if reqs.RequiresSameUser() && !env.IsCreator(rc.FromID) {
		if !isSameRequester(ctx, env, rc) {
			notify("Only the user who started this request can do that.")
			return false
		}
	}

	return true
}

// isSameRequester checks that the sender originally triggered the replied-to
// bot response. The stored reply chain is walked from the bot's message up
// to the first human message, whose author must match.
func isSameRequester(ctx context.Context, env *Env, rc *RequestContext) bool {
	if rc.Reply == nil {
		return false
	}

	botID := env.Client.Self().ID
	cur, err := env.Store.GetMessage(ctx, rc.ChatID, rc.Reply.MessageID)
	if err != nil || cur == nil {
		return false
	}

	for i := 0; i < 10 && cur != nil; i++ {
		if cur.FromID != botID {
			return cur.FromID == rc.FromID
		}
		if cur.ReplyToMessageID == 0 {
			return false
		}
		cur, err = env.Store.GetMessage(ctx, rc.ChatID, cur.ReplyToMessageID)
		if err != nil {
			return false
		}
	}
	return false
}
