package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/domain"
)

// DownloadImage fetches a Telegram file into memory. Files larger than
// maxBytes are rejected without reading the rest of the body.
func DownloadImage(ctx context.Context, b *bot.Bot, fileID, name, mimeType string, maxBytes int64) (domain.ImageFile, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return domain.ImageFile{}, fmt.Errorf("get file: %w", err)
	}
	if maxBytes > 0 && file.FileSize > maxBytes {
		return domain.ImageFile{}, fmt.Errorf("%w: %d bytes (limit %d)", domain.ErrImageTooLarge, file.FileSize, maxBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return domain.ImageFile{}, fmt.Errorf("create download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return domain.ImageFile{}, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.ImageFile{}, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return domain.ImageFile{}, fmt.Errorf("read file data: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return domain.ImageFile{}, fmt.Errorf("%w: over %d bytes", domain.ErrImageTooLarge, maxBytes)
	}

	if name == "" {
		name = path.Base(file.FilePath)
	}
	return domain.ImageFile{Name: name, MIMEType: mimeType, Data: data}, nil
}

// LargestPhoto returns the highest resolution size of a photo message.
func LargestPhoto(sizes []models.PhotoSize) (models.PhotoSize, bool) {
	if len(sizes) == 0 {
		return models.PhotoSize{}, false
	}
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best, true
}
