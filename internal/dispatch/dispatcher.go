package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"talkbot/internal/command"
	"talkbot/internal/domain"
	"talkbot/internal/store"
)

// Dispatcher routes incoming updates: text commands through the matcher and
// the authorization gate, button presses to callback handlers, and plain
// conversation to the default chat executor.
type Dispatcher struct {
	Env       *command.Env
	Commands  command.List
	Callbacks []*command.Callback
	Logger    *slog.Logger
}

// Dispatch handles one update on its own goroutine so a slow streaming
// exchange never blocks the update loop.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.Logger.Error("panic in update handler", "panic", r, "stack", string(debug.Stack()))
			}
		}()

		switch {
		case update.Message != nil:
			d.handleMessage(ctx, update.Message)
		case update.CallbackQuery != nil:
			d.handleCallback(ctx, update.CallbackQuery)
		}
	}()
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	env := d.Env

	if d.handleMembershipEvents(msg) {
		return
	}
	if msg.From == nil {
		return
	}

	d.persist(ctx, msg)

	if env.Mod.IsMuted(msg.From.ID) {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	// forwarded content is recorded for reply chains but never triggers
	// commands or conversation
	if msg.ForwardDate != 0 {
		return
	}
	if text == "" && len(msg.Photo) == 0 {
		return
	}

	rc := command.ContextFromMessage(msg)
	notify := func(reason string) {
		if _, err := env.Client.Reply(msg.Chat.ID, msg.MessageID, reason); err != nil {
			d.Logger.Debug("denial reply failed", "error", err)
		}
	}

	if def, match := d.Commands.Match(text, env.Client.Self().UserName); def != nil {
		if !command.CheckRequirements(ctx, env, def.Require, rc, notify) {
			return
		}
		req := &command.Request{Msg: msg, Match: match}
		if err := def.Handler(ctx, env, req); err != nil {
			d.Logger.Error("command failed", "command", match[1], "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}

	d.handleConversation(ctx, msg, text, rc)
}

// handleConversation routes non-command messages. A bare address prefix
// gets a canned poke response; an addressed message goes to the default
// chat executor.
func (d *Dispatcher) handleConversation(ctx context.Context, msg *tgbotapi.Message, text string, rc *command.RequestContext) {
	env := d.Env

	addressed, prompt := d.addressed(msg, text)
	if !addressed {
		return
	}

	// the silent gates still apply to free conversation
	if !command.CheckRequirements(ctx, env, 0, rc, nil) {
		return
	}

	if prompt == "" && len(msg.Photo) == 0 {
		if answer := store.Pick(env.Answers.Prefix); answer != "" {
			if _, err := env.Client.Reply(msg.Chat.ID, msg.MessageID, answer); err != nil {
				d.Logger.Debug("poke reply failed", "error", err)
			}
		}
		return
	}

	svc, ok := env.DefaultChat()
	if !ok {
		return
	}
	if err := svc.ExecuteChat(ctx, env, msg, prompt); err != nil {
		d.Logger.Error("chat exchange failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

// addressed decides whether the message is directed at the bot and returns
// the prompt with the address prefix stripped. Private messages and replies
// to the bot's own messages are always addressed; in groups the message must
// start with the configured prefix.
func (d *Dispatcher) addressed(msg *tgbotapi.Message, text string) (bool, string) {
	env := d.Env

	if msg.Chat.IsPrivate() {
		return true, strings.TrimSpace(text)
	}
	if r := msg.ReplyToMessage; r != nil && r.From != nil && r.From.ID == env.Client.Self().ID {
		return true, strings.TrimSpace(text)
	}

	prefix := env.Cfg.General.BotPrefix
	if prefix == "" {
		return false, ""
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return false, ""
	}
	rest := trimmed[len(prefix):]
	if rest != "" && rest[0] != ',' && rest[0] != ':' && rest[0] != ' ' && rest[0] != '\n' {
		// prefix is part of a longer word
		return false, ""
	}
	return true, strings.TrimSpace(strings.TrimLeft(rest, ",: \n"))
}

// handleMembershipEvents answers join and leave service messages.
func (d *Dispatcher) handleMembershipEvents(msg *tgbotapi.Message) bool {
	env := d.Env

	if len(msg.NewChatMembers) > 0 {
		for _, member := range msg.NewChatMembers {
			if member.ID == env.Client.Self().ID {
				d.Logger.Info("joined chat", "chat_id", msg.Chat.ID, "title", msg.Chat.Title)
				continue
			}
			if answer := store.Pick(env.Answers.Invite); answer != "" {
				if _, err := env.Client.Reply(msg.Chat.ID, msg.MessageID, answer); err != nil {
					d.Logger.Debug("invite reply failed", "error", err)
				}
			}
		}
		return true
	}

	if msg.LeftChatMember != nil {
		if msg.LeftChatMember.ID == env.Client.Self().ID {
			return true
		}
		if answer := store.Pick(env.Answers.Kick); answer != "" {
			if _, err := env.Client.Reply(msg.Chat.ID, msg.MessageID, answer); err != nil {
				d.Logger.Debug("kick reply failed", "error", err)
			}
		}
		return true
	}

	return false
}

// persist records the message, its author and any attached photo so later
// reply chains can reconstruct the conversation.
func (d *Dispatcher) persist(ctx context.Context, msg *tgbotapi.Message) {
	env := d.Env

	photoPath := ""
	if len(msg.Photo) > 0 {
		path, err := env.Photos.Cache(msg)
		if err != nil {
			d.Logger.Warn("photo cache failed", "chat_id", msg.Chat.ID, "error", err)
		} else {
			photoPath = path
		}
	}

	if err := env.Store.PutUser(ctx, domain.StoredUser{
		ID:        msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.UserName,
	}); err != nil {
		d.Logger.Warn("persist user failed", "user_id", msg.From.ID, "error", err)
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	stored := domain.StoredMessage{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		FromID:    msg.From.ID,
		Text:      text,
		Date:      int64(msg.Date),
		PhotoPath: photoPath,
	}
	if msg.ReplyToMessage != nil {
		stored.ReplyToMessageID = msg.ReplyToMessage.MessageID
	}
	if err := env.Store.PutMessage(ctx, stored); err != nil {
		d.Logger.Warn("persist message failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	env := d.Env

	cb := command.MatchCallback(d.Callbacks, query.Data)
	if cb == nil {
		if err := env.Client.AnswerCallback(query.ID, "", false); err != nil {
			d.Logger.Debug("callback ack failed", "error", err)
		}
		return
	}

	rc := command.ContextFromCallback(query)
	notify := func(reason string) {
		if err := env.Client.AnswerCallback(query.ID, reason, true); err != nil {
			d.Logger.Debug("callback denial failed", "error", err)
		}
	}

	if !command.CheckRequirements(ctx, env, cb.Require, rc, notify) {
		return
	}
	if err := cb.Handler(ctx, env, query); err != nil {
		d.Logger.Error("callback failed", "data", cb.Data, "error", err)
	}
	if cb.After != nil {
		cb.After(ctx, env, query)
	}
}
