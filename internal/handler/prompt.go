package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/telegram"
)

// handleText sends a plain text message as the prompt of the next turn.
func (h *Handler) handleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	o, err := h.chatFor(ctx, msg.Chat.ID)
	if err != nil {
		h.reply(ctx, b, msg.Chat.ID, err)
		return
	}
	h.send(ctx, b, msg, o, msg.Text)
}

// handleImage attaches a photo or image document to the next turn. A caption
// is sent right away as the prompt.
func (h *Handler) handleImage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID
	o, err := h.chatFor(ctx, chatID)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}

	fileID, name, mimeType, ok := imageSource(msg)
	if !ok {
		return
	}
	if !o.Snapshot().AcceptsImage {
		h.reply(ctx, b, chatID, domain.ErrImageLocked)
		return
	}

	img, err := telegram.DownloadImage(ctx, b, fileID, name, mimeType, h.cfg.MaxImageBytes)
	if err != nil {
		if errors.Is(err, domain.ErrImageTooLarge) {
			h.reply(ctx, b, chatID, err)
			return
		}
		h.reportError(ctx, b, chatID, err, "download image")
		return
	}
	if err := o.SelectFile(img); err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}

	if strings.TrimSpace(msg.Caption) == "" {
		telegram.SendText(ctx, b, chatID, "📎 Image attached: "+img.Name+". Now send your question.", nil)
		return
	}
	h.send(ctx, b, msg, o, msg.Caption)
}

func (h *Handler) send(ctx context.Context, b *bot.Bot, msg *models.Message, o *chat.Orchestrator, prompt string) {
	chatID := msg.Chat.ID
	turn, err := o.Prepare(prompt)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}

	stopTyping := telegram.StartTyping(ctx, b, chatID)
	res, err := turn.Run(ctx)
	stopTyping()

	if errors.Is(err, domain.ErrStaleChat) {
		slog.Info("dropped reply for inactive chat", "chat_id", chatID)
		return
	}
	replyTo := &msg.ID
	for _, m := range res.Messages {
		if sendErr := telegram.SendLongMessage(ctx, b, chatID, m.Text, replyTo); sendErr != nil {
			slog.Error("send reply", "chat_id", chatID, "error", sendErr)
		}
		replyTo = nil
	}
	switch {
	case res.SessionID != "":
		telegram.SendText(ctx, b, chatID, "🔗 Conversation started. Ask follow-up questions or send /end to finish.", nil)
	case errors.Is(err, domain.ErrNoCredential), errors.Is(err, domain.ErrRoomNotFound):
		h.reply(ctx, b, chatID, err)
	case err != nil && !res.Failed:
		h.reply(ctx, b, chatID, err)
	}
}

// imageSource picks the file of a photo or image document message.
func imageSource(msg *models.Message) (fileID, name, mimeType string, ok bool) {
	if photo, found := telegram.LargestPhoto(msg.Photo); found {
		return photo.FileID, "photo.jpg", "image/jpeg", true
	}
	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		return doc.FileID, doc.FileName, doc.MimeType, true
	}
	return "", "", "", false
}
