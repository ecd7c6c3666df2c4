package store

import (
	"context"
	"encoding/base64"
	"os"

	"talkbot/internal/domain"
)

// CollectReplyChain walks the reply-to links starting at trigger and returns
// the conversation as message parts, newest first. The chain stops at the
// first message without a stored parent or once limit parts are collected.
// cutPrefix strips bot address prefixes so the backend sees clean text.
func (s *Store) CollectReplyChain(ctx context.Context, trigger *domain.StoredMessage, botID int64, limit int, cutPrefix func(string) string) ([]domain.MessagePart, error) {
	if limit <= 0 {
		limit = 40
	}

	var parts []domain.MessagePart

	push := func(m *domain.StoredMessage) error {
		text := m.Text
		if cutPrefix != nil {
			text = cutPrefix(text)
		}

		var images []string
		if m.PhotoPath != "" {
			if data, err := os.ReadFile(m.PhotoPath); err == nil {
				images = append(images, base64.StdEncoding.EncodeToString(data))
			}
		}
		if text == "" && len(images) == 0 {
			return nil
		}

		name := ""
		if user, err := s.GetUser(ctx, m.FromID); err == nil && user != nil {
			name = user.FirstName
		}

		parts = append(parts, domain.MessagePart{
			Bot:     m.FromID == botID,
			Name:    name,
			Content: text,
			Images:  images,
		})
		return nil
	}

	if err := push(trigger); err != nil {
		return nil, err
	}

	cur := trigger
	for len(parts) < limit && cur.ReplyToMessageID != 0 {
		parent, err := s.GetMessage(ctx, cur.ChatID, cur.ReplyToMessageID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		if err := push(parent); err != nil {
			return nil, err
		}
		cur = parent
	}

	return parts, nil
}
