package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/telegram"
)

const roomHelp = "👋 I answer questions about images.\n\n" +
	"Commands:\n" +
	"/token <value> — store your API token\n" +
	"/rooms — pick a room\n" +
	"/new [title] — create a room\n" +
	"/delete — delete the current room\n" +
	"/history — show the conversation\n" +
	"/model [name] — choose a model\n" +
	"/end — leave the current room\n\n" +
	"Send a photo (with a caption as the question) or plain text."

const sessionHelp = "👋 I answer questions about an image.\n\n" +
	"Send a photo with your question as the caption. Follow-up messages are " +
	"about the same image until you send /end.\n\n" +
	"Commands:\n" +
	"/token <value> — store your API token\n" +
	"/history — show the conversation\n" +
	"/model [name] — choose a model\n" +
	"/end — finish the conversation"

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	text := roomHelp
	if h.mode == domain.ModeSession {
		text = sessionHelp
	}
	telegram.SendText(ctx, b, update.Message.Chat.ID, text, nil)
}
