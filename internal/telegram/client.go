package telegram

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const sendMaxRetries = 3

// Client is the outbound surface of the Telegram transport consumed by the
// dispatcher, the authorization gate, the streaming coordinator, and command
// handlers. The Bot API is a remote service with its own rate limits; all
// methods may fail transiently.
type Client interface {
	Self() tgbotapi.User

	Send(chatID int64, text string) (tgbotapi.Message, error)
	Reply(chatID int64, replyTo int, text string) (tgbotapi.Message, error)
	EditText(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	EditMarkup(chatID int64, messageID int, markup tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string, alert bool) error

	ChatMemberStatus(chatID, userID int64) (string, error)
	BanMember(chatID, userID int64) error
	UnbanMember(chatID, userID int64) error
	LeaveChat(chatID int64) error
	SetChatTitle(chatID int64, title string) error

	SendPhoto(chatID int64, replyTo int, name string, data []byte, caption string) (tgbotapi.Message, error)
	SendDice(chatID int64) (tgbotapi.Message, error)

	FileURL(fileID string) (string, error)
	Download(fileID string) ([]byte, error)
	UserPhotoFileID(userID int64) (string, error)

	RegisterCommands(cmds []tgbotapi.BotCommand) error
}

// IsMemberAdmin reports whether a chat-member status grants admin rights.
func IsMemberAdmin(status string) bool {
	return status == "administrator" || status == "creator"
}

// BotClient implements Client on top of go-telegram-bot-api.
type BotClient struct {
	bot       *tgbotapi.BotAPI
	parseMode string
	http      *http.Client
	logger    *slog.Logger
}

func NewBotClient(bot *tgbotapi.BotAPI, parseMode string, logger *slog.Logger) *BotClient {
	if parseMode == "" {
		parseMode = tgbotapi.ModeMarkdown
	}
	return &BotClient{
		bot:       bot,
		parseMode: parseMode,
		http:      &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

func (c *BotClient) Self() tgbotapi.User { return c.bot.Self }

func (c *BotClient) Send(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return c.sendWithRetry(msg.BaseChat, text)
}

func (c *BotClient) Reply(chatID int64, replyTo int, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	return c.sendWithRetry(msg.BaseChat, text)
}

// sendWithRetry sends with parse-mode fallback and rate-limit backoff, the
// same strategy used for every outbound text message: markdown first, plain
// on parse errors, linear backoff on 429.
func (c *BotClient) sendWithRetry(base tgbotapi.BaseChat, text string) (tgbotapi.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= sendMaxRetries; attempt++ {
		msg := tgbotapi.MessageConfig{BaseChat: base, Text: text, DisableWebPagePreview: true}
		if attempt == 0 {
			msg.ParseMode = c.parseMode
		}

		sent, err := c.bot.Send(msg)
		if err == nil {
			return sent, nil
		}
		lastErr = err

		if backoff, ok := RetryAfter(err); ok {
			c.logger.Warn("telegram rate limited, backing off", "retry_after", backoff, "attempt", attempt+1)
			time.Sleep(backoff)
			continue
		}
		if attempt == 0 && IsParseError(err) {
			// retry immediately without parse mode
			continue
		}
		break
	}
	return tgbotapi.Message{}, lastErr
}

func (c *BotClient) EditText(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = c.parseMode
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = markup

	_, err := c.bot.Send(edit)
	if IsParseError(err) {
		edit.ParseMode = ""
		_, err = c.bot.Send(edit)
	}
	return err
}

func (c *BotClient) EditMarkup(chatID int64, messageID int, markup tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup)
	_, err := c.bot.Send(edit)
	return err
}

func (c *BotClient) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	_, err := c.bot.Request(cb)
	return err
}

func (c *BotClient) ChatMemberStatus(chatID, userID int64) (string, error) {
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return "", err
	}
	return member.Status, nil
}

func (c *BotClient) BanMember(chatID, userID int64) error {
	_, err := c.bot.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	})
	return err
}

func (c *BotClient) UnbanMember(chatID, userID int64) error {
	_, err := c.bot.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	})
	return err
}

func (c *BotClient) LeaveChat(chatID int64) error {
	_, err := c.bot.Request(tgbotapi.LeaveChatConfig{ChatID: chatID})
	return err
}

func (c *BotClient) SetChatTitle(chatID int64, title string) error {
	_, err := c.bot.Request(tgbotapi.SetChatTitleConfig{ChatID: chatID, Title: title})
	return err
}

func (c *BotClient) SendPhoto(chatID int64, replyTo int, name string, data []byte, caption string) (tgbotapi.Message, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.ReplyToMessageID = replyTo
	photo.Caption = caption
	return c.bot.Send(photo)
}

func (c *BotClient) SendDice(chatID int64) (tgbotapi.Message, error) {
	return c.bot.Send(tgbotapi.NewDice(chatID))
}

func (c *BotClient) FileURL(fileID string) (string, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", err
	}
	return file.Link(c.bot.Token), nil
}

func (c *BotClient) Download(fileID string) ([]byte, error) {
	url, err := c.FileURL(fileID)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// UserPhotoFileID returns the file id of the largest size of the user's most
// recent profile photo, or "" when the user has none.
func (c *BotClient) UserPhotoFileID(userID int64) (string, error) {
	photos, err := c.bot.GetUserProfilePhotos(tgbotapi.NewUserProfilePhotos(userID))
	if err != nil {
		return "", err
	}
	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}
	sizes := photos.Photos[0]
	return sizes[len(sizes)-1].FileID, nil
}

func (c *BotClient) RegisterCommands(cmds []tgbotapi.BotCommand) error {
	_, err := c.bot.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}
