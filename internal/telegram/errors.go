package telegram

import (
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// The Bot API reports edit conflicts and size violations only through error
// descriptions, so classification is textual. These helpers are the single
// place that knows the wire strings.

// IsNotModified reports whether err is the "message is not modified" edit
// error. Editing with identical content is a no-op, not a failure.
func IsNotModified(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "message is not modified")
}

// IsMessageTooLong reports whether err means the text exceeded the 4096-char
// message limit.
func IsMessageTooLong(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "message is too long") || strings.Contains(s, "MESSAGE_TOO_LONG")
}

// IsParseError reports whether err is an entity-parse failure for the chosen
// parse mode. The caller retries as plain text.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "can't parse entities")
}

// IsForbidden reports whether the bot is not allowed to message the target
// (user blocked the bot or never started a private chat).
func IsForbidden(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 403
	}
	return false
}

// RetryAfter extracts the backoff hint from a "Too Many Requests" error.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second, true
	}
	if err != nil && strings.Contains(err.Error(), "Too Many Requests") {
		return 3 * time.Second, true
	}
	return 0, false
}
