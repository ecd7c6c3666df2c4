package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"talkbot/internal/command"
	"talkbot/internal/config"
	"talkbot/internal/domain"
	"talkbot/internal/stream"
)

// CancelData is the callback payload tag carried by the cancel button under
// streaming responses.
const CancelData = "/cancel_chat"

// ChatService turns an incoming message into a streaming AI exchange. It is
// registered as the default chat executor and also backs the explicit /chat
// and /chatthink commands.
type ChatService struct {
	Backends map[string]domain.Backend
	Coord    *stream.Coordinator
}

func (s *ChatService) backend(env *command.Env) (domain.Backend, string, error) {
	name := env.Cfg.Chat.DefaultBackend
	b, ok := s.Backends[name]
	if !ok {
		return nil, "", fmt.Errorf("backend %q is not configured", name)
	}
	return b, name, nil
}

// ExecuteChat implements command.ChatExecutor.
func (s *ChatService) ExecuteChat(ctx context.Context, env *command.Env, msg *tgbotapi.Message, text string) error {
	return s.run(ctx, env, msg, text, false)
}

// ExecuteChatThink runs the exchange with the model's reasoning mode on.
func (s *ChatService) ExecuteChatThink(ctx context.Context, env *command.Env, msg *tgbotapi.Message, text string) error {
	return s.run(ctx, env, msg, text, true)
}

func (s *ChatService) run(ctx context.Context, env *command.Env, msg *tgbotapi.Message, text string, think bool) error {
	backend, name, err := s.backend(env)
	if err != nil {
		_, rerr := env.Client.Reply(msg.Chat.ID, msg.MessageID, "No AI backend is available right now.")
		if rerr != nil {
			return rerr
		}
		return err
	}
	bcfg := env.Cfg.Backends[name]

	parts, err := s.conversation(ctx, env, msg, text)
	if err != nil {
		return fmt.Errorf("collect conversation: %w", err)
	}

	req := s.buildRequest(env, bcfg, parts, think)

	if notice := s.checkCapabilities(ctx, env, backend, &req, think); notice != "" {
		_, rerr := env.Client.Reply(msg.Chat.ID, msg.MessageID, notice)
		return rerr
	}

	return s.Coord.Run(ctx, backend, req, msg)
}

// conversation resolves the stored trigger message and walks its reply
// chain. The trigger text is overridden with the already prefix-stripped
// text the dispatcher extracted.
func (s *ChatService) conversation(ctx context.Context, env *command.Env, msg *tgbotapi.Message, text string) ([]domain.MessagePart, error) {
	trigger, err := env.Store.GetMessage(ctx, msg.Chat.ID, msg.MessageID)
	if err != nil {
		return nil, err
	}
	if trigger == nil {
		trigger = &domain.StoredMessage{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			FromID:    fromID(msg),
			Date:      int64(msg.Date),
		}
		if msg.ReplyToMessage != nil {
			trigger.ReplyToMessageID = msg.ReplyToMessage.MessageID
		}
	}
	trigger.Text = text

	botID := env.Client.Self().ID
	prefix := env.Cfg.General.BotPrefix
	cut := func(t string) string { return CutAddressPrefix(t, prefix) }

	return env.Store.CollectReplyChain(ctx, trigger, botID, env.Cfg.Chat.ReplyChainLimit, cut)
}

// buildRequest flattens the newest-first conversation parts into an
// oldest-first chat request with the system prompt up front.
func (s *ChatService) buildRequest(env *command.Env, bcfg config.BackendConfig, parts []domain.MessagePart, think bool) domain.ChatRequest {
	req := domain.ChatRequest{Model: modelFor(bcfg, think, hasImages(parts)), Think: think}

	if prompt := env.Cfg.Chat.SystemPrompt; prompt != "" {
		req.Messages = append(req.Messages, domain.ChatMessage{Role: "system", Content: prompt})
	}

	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		role := "user"
		content := p.Content
		if p.Bot {
			role = "assistant"
		} else if env.Cfg.Chat.UseNamesInPrompt && p.Name != "" {
			content = p.Name + ": " + content
		}
		req.Messages = append(req.Messages, domain.ChatMessage{Role: role, Content: content, Images: p.Images})
	}
	return req
}

// checkCapabilities verifies the selected model can handle the request and
// returns a user-facing notice when it cannot. The check is advisory for
// backends that do not report capabilities.
func (s *ChatService) checkCapabilities(ctx context.Context, env *command.Env, backend domain.Backend, req *domain.ChatRequest, think bool) string {
	mb, ok := backend.(domain.ModelBackend)
	if !ok {
		return ""
	}

	info, err := mb.Show(ctx, req.Model)
	if err != nil {
		env.Logger.Debug("model capability lookup failed", "model", req.Model, "error", err)
		return ""
	}
	if think && !info.Has("thinking") {
		return fmt.Sprintf("Model %s does not support thinking.", req.Model)
	}
	if hasImageMessages(req.Messages) && !info.Has("vision") {
		// drop the images rather than fail the whole exchange
		for i := range req.Messages {
			req.Messages[i].Images = nil
		}
		env.Logger.Debug("model has no vision, images dropped", "model", req.Model)
	}
	return ""
}

// modelFor picks the model variant for the request: the thinking model for
// reasoning requests and the vision model when images are attached, falling
// back to the default when a variant is not configured.
func modelFor(bcfg config.BackendConfig, think, vision bool) string {
	if think && bcfg.ThinkModel != "" {
		return bcfg.ThinkModel
	}
	if vision && bcfg.VisionModel != "" {
		return bcfg.VisionModel
	}
	return bcfg.Model
}

func hasImages(parts []domain.MessagePart) bool {
	for _, p := range parts {
		if len(p.Images) > 0 {
			return true
		}
	}
	return false
}

func hasImageMessages(msgs []domain.ChatMessage) bool {
	for _, m := range msgs {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}

func fromID(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return 0
}

// CutAddressPrefix strips a leading bot address ("bot, do this") from text,
// case-insensitively, along with any following comma or whitespace.
func CutAddressPrefix(text, prefix string) string {
	if prefix == "" {
		return strings.TrimSpace(text)
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
		rest := trimmed[len(prefix):]
		if rest == "" {
			return ""
		}
		if rest[0] == ',' || rest[0] == ':' || rest[0] == ' ' || rest[0] == '\n' {
			return strings.TrimSpace(strings.TrimLeft(rest, ",: \n"))
		}
	}
	return trimmed
}

func chatCmd(svc *ChatService) *command.Definition {
	return &command.Definition{
		Names:       []string{"chat", "ai"},
		Args:        command.ArgsRequired,
		Title:       "/chat question",
		Description: "ask the AI",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			return svc.ExecuteChat(ctx, env, req.Msg, req.Args())
		},
	}
}

func chatThinkCmd(svc *ChatService) *command.Definition {
	return &command.Definition{
		Names:       []string{"chatthink", "think"},
		Args:        command.ArgsRequired,
		Title:       "/chatthink question",
		Description: "ask the AI with reasoning enabled",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			return svc.ExecuteChatThink(ctx, env, req.Msg, req.Args())
		},
	}
}

// cancelCallback stops an in-flight streaming response. Only the user who
// started the request (or the bot owner) may cancel it.
func cancelCallback() *command.Callback {
	return &command.Callback{
		Data: CancelData,
		Text: "Cancel",
		Handler: func(ctx context.Context, env *command.Env, query *tgbotapi.CallbackQuery) error {
			id := strings.TrimSpace(strings.TrimPrefix(query.Data, CancelData))
			req := env.Streams.Get(id)
			if req == nil || req.Done {
				return env.Client.AnswerCallback(query.ID, "Nothing to cancel.", false)
			}

			from := int64(0)
			if query.From != nil {
				from = query.From.ID
			}
			if from != req.FromID && !env.IsCreator(from) {
				return env.Client.AnswerCallback(query.ID, "Only the user who asked can cancel this.", true)
			}

			if !env.Streams.Abort(id) {
				return env.Client.AnswerCallback(query.ID, "Nothing to cancel.", false)
			}

			if query.Message != nil {
				text := query.Message.Text
				marker := "❌ Cancelled."
				if text == "" {
					text = marker
				} else {
					text = stream.Truncate(text + "\n\n" + marker)
				}
				if err := env.Client.EditText(query.Message.Chat.ID, query.Message.MessageID, text, nil); err != nil {
					env.Logger.Debug("cancel edit failed", "error", err)
				}
				_ = env.Store.PutMessage(ctx, domain.StoredMessage{
					ChatID:           query.Message.Chat.ID,
					MessageID:        query.Message.MessageID,
					ReplyToMessageID: replyToID(query.Message),
					FromID:           env.Client.Self().ID,
					Text:             text,
					Date:             time.Now().Unix(),
				})
			}
			return env.Client.AnswerCallback(query.ID, "Cancelled.", false)
		},
	}
}

func replyToID(msg *tgbotapi.Message) int {
	if msg.ReplyToMessage != nil {
		return msg.ReplyToMessage.MessageID
	}
	return 0
}
