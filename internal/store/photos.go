package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FileSource downloads a Telegram file by file id.
type FileSource interface {
	Download(fileID string) ([]byte, error)
}

// PhotoCache downloads message attachments once and keeps them on disk,
// keyed by Telegram's stable unique file id.
type PhotoCache struct {
	dir     string
	maxSide int
	src     FileSource
	logger  *slog.Logger
}

func NewPhotoCache(dataDir string, maxSide int, src FileSource, logger *slog.Logger) *PhotoCache {
	return &PhotoCache{
		dir:     filepath.Join(dataDir, "photo"),
		maxSide: maxSide,
		src:     src,
		logger:  logger,
	}
}

// PathFor maps a unique file id to its cache location.
func (p *PhotoCache) PathFor(uniqueID string) string {
	return filepath.Join(p.dir, uniqueID+".jpg")
}

// Cache stores the best photo attached to msg and returns its path, or ""
// when the message carries no usable photo. Already-cached photos are not
// re-downloaded.
func (p *PhotoCache) Cache(msg *tgbotapi.Message) (string, error) {
	size := BestPhotoSize(msg.Photo, p.maxSide)
	if size == nil {
		return "", nil
	}

	path := p.PathFor(size.FileUniqueID)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create photo cache dir: %w", err)
	}

	data, err := p.src.Download(size.FileID)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}

	p.logger.Debug("cached photo", "path", path, "bytes", len(data))
	return path, nil
}

// BestPhotoSize picks the largest size whose longer side does not exceed
// target. Telegram sends several downscaled variants per photo.
func BestPhotoSize(sizes []tgbotapi.PhotoSize, target int) *tgbotapi.PhotoSize {
	var best *tgbotapi.PhotoSize
	for i := range sizes {
		s := &sizes[i]
		side := s.Width
		if s.Height > side {
			side = s.Height
		}
		if side > target {
			continue
		}
		if best == nil || s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}
