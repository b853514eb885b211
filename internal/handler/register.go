package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/telegram"
)

// Register registers all command, callback and message handlers on the bot.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/token", bot.MatchTypePrefix, h.handleToken)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/rooms", bot.MatchTypePrefix, h.handleRooms)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypePrefix, h.handleNewRoom)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/delete", bot.MatchTypePrefix, h.handleDeleteRoom)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/end", bot.MatchTypePrefix, h.handleEnd)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix, h.handleHistory)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/model", bot.MatchTypePrefix, h.handleModel)

	// Callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackRoom, bot.MatchTypePrefix, h.handleRoomSelect)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackRoomsPage, bot.MatchTypePrefix, h.handleRoomsPage)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackModel, bot.MatchTypePrefix, h.handleModelSelect)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackNoop, bot.MatchTypeExact, h.handleNoop)

	// Prompts and images
	h.bot.RegisterHandlerMatchFunc(isPlainText, h.handleText)
	h.bot.RegisterHandlerMatchFunc(isImage, h.handleImage)
}

func isPlainText(update *models.Update) bool {
	return update.Message != nil && update.Message.Text != "" && !strings.HasPrefix(update.Message.Text, "/")
}

func isImage(update *models.Update) bool {
	if update.Message == nil {
		return false
	}
	if len(update.Message.Photo) > 0 {
		return true
	}
	doc := update.Message.Document
	return doc != nil && strings.HasPrefix(doc.MimeType, "image/")
}

// handleNoop acknowledges callbacks of non-interactive buttons.
func (h *Handler) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
	}
}
