package command

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"talkbot/internal/config"
	"talkbot/internal/store"
	"talkbot/internal/stream"
	"talkbot/internal/telegram"
)

// ServiceDefaultChat names the executor the dispatcher routes free-form
// conversation to.
const ServiceDefaultChat = "default-ai-chat"

// ChatExecutor runs a conversational exchange triggered by msg with the
// given prompt text.
type ChatExecutor interface {
	ExecuteChat(ctx context.Context, env *Env, msg *tgbotapi.Message, text string) error
}

// Env bundles the shared services every command handler may need. One Env is
// built at startup and passed by pointer; all fields are safe for concurrent
// use.
type Env struct {
	Client    telegram.Client
	Store     *store.Store
	Photos    *store.PhotoCache
	Mod       *store.Moderation
	Answers   *store.Answers
	Cfg       *config.Config
	CfgPath   string
	Streams   *stream.Registry
	Services  map[string]ChatExecutor
	Logger    *slog.Logger
	StartedAt time.Time

	// Shutdown stops the whole bot; wired to the run loop's cancel.
	Shutdown context.CancelFunc
}

// CreatorID is the configured owner id, 0 when unset.
func (e *Env) CreatorID() int64 { return e.Cfg.General.CreatorID }

// IsCreator reports whether userID is the configured owner.
func (e *Env) IsCreator(userID int64) bool {
	return e.CreatorID() != 0 && userID == e.CreatorID()
}

// IsBotAdmin reports whether userID may use admin commands. The creator is
// always an admin.
func (e *Env) IsBotAdmin(userID int64) bool {
	return e.IsCreator(userID) || e.Mod.IsAdmin(userID)
}

// DefaultChat returns the executor registered for free-form conversation.
func (e *Env) DefaultChat() (ChatExecutor, bool) {
	svc, ok := e.Services[ServiceDefaultChat]
	return svc, ok
}
