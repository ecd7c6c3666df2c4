package command

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RequestContext is the authorization view of an incoming update: who sent
// it, where, and what it replies to. Both message and callback updates are
// normalized into it before gating.
type RequestContext struct {
	FromID     int64
	ChatID     int64
	MessageID  int
	ChatType   string
	Reply      *tgbotapi.Message
	CallbackID string // non-empty for callback queries
}

func (rc *RequestContext) IsPrivate() bool { return rc.ChatType == "private" }

// ContextFromMessage builds the request context for a regular chat message.
func ContextFromMessage(msg *tgbotapi.Message) *RequestContext {
	rc := &RequestContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		ChatType:  msg.Chat.Type,
		Reply:     msg.ReplyToMessage,
	}
	if msg.From != nil {
		rc.FromID = msg.From.ID
	}
	return rc
}

// ContextFromCallback builds the request context for an inline button press.
// The chat and reply come from the message the button is attached to.
func ContextFromCallback(query *tgbotapi.CallbackQuery) *RequestContext {
	rc := &RequestContext{CallbackID: query.ID}
	if query.From != nil {
		rc.FromID = query.From.ID
	}
	if query.Message != nil {
		rc.ChatID = query.Message.Chat.ID
		rc.MessageID = query.Message.MessageID
		rc.ChatType = query.Message.Chat.Type
		rc.Reply = query.Message.ReplyToMessage
	}
	return rc
}
