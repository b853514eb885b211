package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/telegram"
)

// handleToken stores or clears the sender's backend token. The command
// message is deleted so the token does not stay in the chat history.
func (h *Handler) handleToken(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	token := commandArg(msg.Text)

	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: msg.ID}); err != nil {
		slog.Debug("delete token message", "chat_id", chatID, "error", err)
	}

	if token == "" {
		if err := h.credentials.DeleteToken(ctx, msg.From.ID); err != nil {
			h.reportError(ctx, b, chatID, err, "delete token")
			return
		}
		telegram.SendText(ctx, b, chatID, "🔓 Token removed.", nil)
		return
	}

	if err := h.credentials.SetToken(ctx, msg.From.ID, token); err != nil {
		h.reportError(ctx, b, chatID, err, "set token")
		return
	}
	telegram.SendText(ctx, b, chatID, "🔐 Token saved. Use /rooms to pick a room.", nil)
}
