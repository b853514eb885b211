package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/config"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/telegram"
)

const roomsUnavailable = "Rooms are not used in this bot. Send a photo to start a conversation."

func (h *Handler) handleRooms(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if h.mode == domain.ModeSession {
		telegram.SendText(ctx, b, chatID, roomsUnavailable, nil)
		return
	}
	rooms, err := h.rooms.ListRooms(ctx)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}
	if update.Message.From != nil {
		h.roomList.Set(update.Message.From.ID, rooms)
	}
	if len(rooms) == 0 {
		telegram.SendText(ctx, b, chatID, "📭 You have no rooms yet. Create one with /new [title].", nil)
		return
	}

	active := domain.NoChat
	if o, err := h.chatFor(ctx, chatID); err == nil {
		active = o.Chat()
	}
	kb := telegram.RoomKeyboard(rooms, active, 0, config.RoomsPerPage)
	telegram.SendText(ctx, b, chatID, fmt.Sprintf("📂 Your rooms (%d):", len(rooms)), kb)
}

func (h *Handler) handleRoomsPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	page, err := strconv.Atoi(strings.TrimPrefix(cq.Data, telegram.CallbackRoomsPage))
	if err != nil {
		return
	}
	chatID := cq.Message.Message.Chat.ID
	rooms, ok := h.roomList.Get(cq.From.ID)
	if !ok {
		if rooms, err = h.rooms.ListRooms(ctx); err != nil {
			h.reply(ctx, b, chatID, err)
			return
		}
		h.roomList.Set(cq.From.ID, rooms)
	}

	active := domain.NoChat
	if o, err := h.chatFor(ctx, chatID); err == nil {
		active = o.Chat()
	}
	_, err = b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   cq.Message.Message.ID,
		ReplyMarkup: telegram.RoomKeyboard(rooms, active, page, config.RoomsPerPage),
	})
	if err != nil {
		slog.Debug("edit rooms keyboard", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) handleRoomSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	chatID := cq.Message.Message.Chat.ID
	roomID := domain.ChatIdentity(strings.TrimPrefix(cq.Data, telegram.CallbackRoom))

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            "Opening room…",
	})
	if h.mode == domain.ModeSession || roomID.IsZero() {
		return
	}
	h.openRoom(ctx, b, chatID, roomID)
}

// openRoom makes room the chat's active room, remembers it and shows its
// history.
func (h *Handler) openRoom(ctx context.Context, b *bot.Bot, chatID int64, room domain.ChatIdentity) {
	o, err := h.chatFor(ctx, chatID)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}
	switchErr := o.SwitchChat(ctx, room)
	if errors.Is(switchErr, domain.ErrStaleChat) {
		return
	}
	if err := h.bindings.SetRoom(ctx, chatID, room); err != nil {
		slog.Error("save room binding", "chat_id", chatID, "room_id", room.String(), "error", err)
	}
	if switchErr != nil {
		h.reply(ctx, b, chatID, switchErr)
		return
	}
	h.sendHistory(ctx, b, chatID, o)
}

func (h *Handler) handleNewRoom(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if h.mode == domain.ModeSession {
		telegram.SendText(ctx, b, chatID, roomsUnavailable, nil)
		return
	}

	title := commandArg(update.Message.Text)
	if title == "" {
		title = config.DefaultRoomTitle
	}
	room, err := h.rooms.CreateRoom(ctx, title)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}
	slog.Info("room created", "chat_id", chatID, "room_id", room.ID)
	if update.Message.From != nil {
		h.roomList.Invalidate(update.Message.From.ID)
	}
	h.openRoom(ctx, b, chatID, domain.ChatIdentity(room.ID))
}

func (h *Handler) handleDeleteRoom(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if h.mode == domain.ModeSession {
		telegram.SendText(ctx, b, chatID, roomsUnavailable, nil)
		return
	}

	o, err := h.chatFor(ctx, chatID)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}
	room := o.Chat()
	if room.IsZero() {
		h.reply(ctx, b, chatID, domain.ErrNoChat)
		return
	}
	if err := h.rooms.DeleteRoom(ctx, string(room)); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		h.reply(ctx, b, chatID, err)
		return
	}

	if update.Message.From != nil {
		h.roomList.Invalidate(update.Message.From.ID)
	}
	if err := o.SwitchChat(ctx, domain.NoChat); err != nil {
		slog.Warn("leave deleted room", "chat_id", chatID, "error", err)
	}
	n, err := h.bindings.ClearRoom(ctx, room)
	if err != nil {
		slog.Error("clear room bindings", "room_id", room.String(), "error", err)
	}
	slog.Info("room deleted", "chat_id", chatID, "room_id", room.String(), "unbound_chats", n)
	telegram.SendText(ctx, b, chatID, "🗑 Room deleted. Use /rooms to pick another one.", nil)
}
