package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/telegram"
)

// userMessage maps an error to the reply shown in the chat. An empty result
// means nothing should be sent.
func userMessage(err error) string {
	var apiErr *backend.APIError
	switch {
	case err == nil, errors.Is(err, domain.ErrStaleChat):
		return ""
	case errors.Is(err, domain.ErrNoCredential):
		return "🔑 Set your API token first: /token <value>"
	case errors.Is(err, domain.ErrNoChat):
		return "📂 No room selected. Use /rooms or /new."
	case errors.Is(err, domain.ErrImageRequired):
		return "🖼 Please upload an image before sending a prompt."
	case errors.Is(err, domain.ErrRequestInFlight):
		return "⏳ Wait for the answer to the previous request."
	case errors.Is(err, domain.ErrEmptyPrompt):
		return "✏️ The prompt is empty."
	case errors.Is(err, domain.ErrPromptTooLong):
		return "✂️ The prompt is too long. Please shorten it."
	case errors.Is(err, domain.ErrImageTooLarge):
		return "📦 The image is too large."
	case errors.Is(err, domain.ErrInvalidImage):
		return "🚫 This file is not a supported image."
	case errors.Is(err, domain.ErrImageLocked):
		return "🔒 This conversation already has an image. Send /end to start over."
	case errors.Is(err, domain.ErrRoomNotFound):
		return "❓ This room no longer exists. Use /rooms to pick another one."
	case errors.Is(err, domain.ErrClosed):
		return "⚠️ The bot is shutting down. Please try again later."
	case errors.As(err, &apiErr):
		return "❌ " + apiErr.Message
	default:
		return "❌ Something went wrong. Please try again."
	}
}

// reply sends the user-facing text for err, if any.
func (h *Handler) reply(ctx context.Context, b *bot.Bot, chatID int64, err error) {
	if text := userMessage(err); text != "" {
		telegram.SendText(ctx, b, chatID, text, nil)
	}
}

// reportError logs an unexpected failure, notifies the admins and tells the
// user.
func (h *Handler) reportError(ctx context.Context, b *bot.Bot, chatID int64, err error, where string) {
	slog.Error(where, "chat_id", chatID, "error", err)
	h.adminLog.LogError(err, where)
	h.reply(ctx, b, chatID, err)
}

// commandArg returns everything after the command word.
func commandArg(text string) string {
	_, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(arg)
}
