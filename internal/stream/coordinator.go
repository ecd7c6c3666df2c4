package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"talkbot/internal/domain"
	"talkbot/internal/store"
	"talkbot/internal/telegram"
)

const (
	// maxMessageLen is Telegram's hard limit on message text length, in
	// characters.
	maxMessageLen = 4096

	placeholderText      = "✍️ Typing..."
	placeholderImageText = "👀 Looking at the picture..."
	thinkingIndicator    = "🤔"
	failureText          = "❌ Something went wrong, try again later."
)

// Coordinator drives one streaming exchange: it posts a placeholder reply
// with a cancel button, consumes backend chunks into a buffer, and edits the
// placeholder on a fixed interval so the answer appears to grow in place.
type Coordinator struct {
	Client       telegram.Client
	Store        *store.Store
	Registry     *Registry
	Logger       *slog.Logger
	EditInterval time.Duration
	Timeout      time.Duration // overall deadline per request, 0 disables
	CancelData   string        // callback payload tag for the cancel button
	CancelLabel  string
}

// progress is the shared buffer between the consumer loop and the ticker.
type progress struct {
	mu       sync.Mutex
	text     strings.Builder
	thinking bool
	lastSent string
}

// view renders the current display text. While the model is in its thinking
// phase the buffer is not growing, so the indicator is appended to whatever
// is already visible.
func (p *progress) view() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := strings.TrimSpace(p.text.String())
	if p.thinking {
		if text == "" {
			return placeholderText + " " + thinkingIndicator
		}
		return Truncate(text + "\n\n" + thinkingIndicator)
	}
	if text == "" {
		return ""
	}
	return Truncate(text)
}

// Truncate caps text at Telegram's message limit, counting characters rather
// than bytes, and marks the cut with an ellipsis.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLen {
		return text
	}
	return string(runes[:maxMessageLen-3]) + "..."
}

// Run executes a full streaming exchange replying to trigger. It blocks
// until the stream completes, fails, or is cancelled through the registry.
func (c *Coordinator) Run(ctx context.Context, backend domain.Backend, req domain.ChatRequest, trigger *tgbotapi.Message) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	id := uuid.NewString()
	hasImages := false
	for _, m := range req.Messages {
		if len(m.Images) > 0 {
			hasImages = true
			break
		}
	}

	placeholder := placeholderText
	if hasImages {
		placeholder = placeholderImageText
	}

	sent, err := c.Client.Reply(trigger.Chat.ID, trigger.MessageID, placeholder)
	if err != nil {
		return fmt.Errorf("send placeholder: %w", err)
	}

	st, err := backend.ChatStream(ctx, req)
	if err != nil {
		c.fail(trigger.Chat.ID, sent.MessageID)
		return fmt.Errorf("open stream: %w", err)
	}

	// register before the cancel button becomes visible, so a click can
	// never hit an unknown uuid
	c.Registry.Push(&Request{
		UUID:   id,
		Stream: st,
		FromID: fromID(trigger),
		ChatID: trigger.Chat.ID,
	})

	markup := c.cancelMarkup(id)
	if err := c.Client.EditMarkup(trigger.Chat.ID, sent.MessageID, markup); err != nil {
		c.Logger.Debug("attach cancel button failed", "error", err)
	}

	buf := &progress{}
	started := time.Now()

	tickerDone := make(chan struct{})
	go c.editLoop(id, trigger.Chat.ID, sent.MessageID, &markup, buf, tickerDone)

	runErr := c.consume(ctx, id, st, buf)

	c.Registry.Finish(id)
	<-tickerDone

	if runErr != nil {
		if errors.Is(runErr, domain.ErrAborted) || errors.Is(runErr, context.Canceled) {
			// the cancel handler already rewrote the message
			return nil
		}
		if errors.Is(runErr, context.DeadlineExceeded) {
			c.fail(trigger.Chat.ID, sent.MessageID)
			return fmt.Errorf("stream timed out: %w", runErr)
		}
		c.fail(trigger.Chat.ID, sent.MessageID)
		return fmt.Errorf("consume stream: %w", runErr)
	}

	final := buf.view()
	if final == "" {
		final = "(empty response)"
	}
	if err := c.Client.EditText(trigger.Chat.ID, sent.MessageID, final, nil); err != nil && !telegram.IsNotModified(err) {
		// the button must not outlive the stream
		c.clearMarkup(trigger.Chat.ID, sent.MessageID)
		if telegram.IsMessageTooLong(err) {
			return fmt.Errorf("final edit exceeded message limit: %w", err)
		}
		c.Logger.Warn("final edit failed", "error", err)
	}

	c.persist(ctx, trigger, sent.MessageID, final)

	elapsed := time.Since(started)
	if _, err := c.Client.Reply(trigger.Chat.ID, sent.MessageID, fmt.Sprintf("⏱️ %.1fs", elapsed.Seconds())); err != nil {
		c.Logger.Debug("elapsed reply failed", "error", err)
	}

	return nil
}

// consume pulls chunks until the stream reports done, fails, overflows the
// message limit, or the registry marks the request cancelled. The done flag
// is checked before every Recv so cancellation takes effect at the next chunk
// boundary. On overflow the buffer is cut to the limit and the stream is
// aborted: the backend must not keep generating text that can never be shown.
func (c *Coordinator) consume(ctx context.Context, id string, st domain.ChatStream, buf *progress) error {
	for {
		if c.Registry.Done(id) {
			return domain.ErrAborted
		}

		chunk, err := st.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		overflow := false
		buf.mu.Lock()
		buf.thinking = chunk.Thinking
		if !chunk.Thinking {
			buf.text.WriteString(chunk.Content)
			if utf8.RuneCountInString(buf.text.String()) > maxMessageLen {
				cut := Truncate(buf.text.String())
				buf.text.Reset()
				buf.text.WriteString(cut)
				buf.thinking = false
				overflow = true
			}
		}
		buf.mu.Unlock()

		if overflow {
			st.Abort()
			return nil
		}
		if chunk.Done {
			return nil
		}
	}
}

// editLoop periodically pushes the buffer to Telegram. An edit is issued
// only when the rendered view changed since the last successful push;
// "message is not modified" responses are expected and swallowed.
func (c *Coordinator) editLoop(id string, chatID int64, messageID int, markup *tgbotapi.InlineKeyboardMarkup, buf *progress, done chan<- struct{}) {
	defer close(done)

	interval := c.EditInterval
	if interval <= 0 {
		interval = 4500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if c.Registry.Done(id) {
			return
		}

		view := buf.view()
		buf.mu.Lock()
		changed := view != "" && view != buf.lastSent
		buf.mu.Unlock()
		if !changed {
			continue
		}

		err := c.Client.EditText(chatID, messageID, view, markup)
		if err != nil && !telegram.IsNotModified(err) {
			if telegram.IsMessageTooLong(err) {
				c.Logger.Warn("interval edit exceeded message limit", "error", err)
			} else {
				c.Logger.Debug("interval edit failed", "error", err)
			}
			continue
		}

		buf.mu.Lock()
		buf.lastSent = view
		buf.mu.Unlock()
	}
}

// persist records the finished response so reply chains can include it.
func (c *Coordinator) persist(ctx context.Context, trigger *tgbotapi.Message, messageID int, text string) {
	msg := domain.StoredMessage{
		ChatID:           trigger.Chat.ID,
		MessageID:        messageID,
		ReplyToMessageID: trigger.MessageID,
		FromID:           c.Client.Self().ID,
		Text:             text,
		Date:             time.Now().Unix(),
	}
	if err := c.Store.PutMessage(ctx, msg); err != nil {
		c.Logger.Warn("persist response failed", "error", err)
	}
}

func (c *Coordinator) fail(chatID int64, messageID int) {
	if err := c.Client.EditText(chatID, messageID, failureText, nil); err != nil {
		c.Logger.Debug("failure edit failed", "error", err)
		c.clearMarkup(chatID, messageID)
	}
}

func (c *Coordinator) clearMarkup(chatID int64, messageID int) {
	empty := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow())
	if err := c.Client.EditMarkup(chatID, messageID, empty); err != nil {
		c.Logger.Debug("clear markup failed", "error", err)
	}
}

func (c *Coordinator) cancelMarkup(id string) tgbotapi.InlineKeyboardMarkup {
	label := c.CancelLabel
	if label == "" {
		label = "Cancel"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, c.CancelData+" "+id),
		),
	)
}

func fromID(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return 0
}
