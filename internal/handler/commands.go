package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/config"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/telegram"
)

// handleEnd leaves the current room, or finishes the current reasoning
// session and starts a fresh conversation.
func (h *Handler) handleEnd(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	o, err := h.chatFor(ctx, chatID)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}

	if h.mode == domain.ModeSession {
		if err := o.SwitchChat(ctx, newConversation()); err != nil {
			h.reply(ctx, b, chatID, err)
			return
		}
		telegram.SendText(ctx, b, chatID, "✅ Conversation finished. Send a new photo to start another one.", nil)
		return
	}

	if err := o.SwitchChat(ctx, domain.NoChat); err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}
	if err := h.bindings.SetRoom(ctx, chatID, domain.NoChat); err != nil {
		slog.Error("clear room binding", "chat_id", chatID, "error", err)
	}
	telegram.SendText(ctx, b, chatID, "👋 You left the room. Use /rooms to pick another one.", nil)
}

func (h *Handler) handleHistory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	o, err := h.chatFor(ctx, chatID)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}
	if h.mode == domain.ModeRoom {
		// Backend failures are shown below the timeline.
		var apiErr *backend.APIError
		if err := o.Reload(ctx); err != nil && !errors.As(err, &apiErr) {
			h.reply(ctx, b, chatID, err)
			return
		}
	}
	h.sendHistory(ctx, b, chatID, o)
}

// sendHistory renders the active chat's timeline, followed by its last error.
func (h *Handler) sendHistory(ctx context.Context, b *bot.Bot, chatID int64, o *chat.Orchestrator) {
	snap := o.Snapshot()
	text := historyText(snap)
	if err := telegram.SendLongMessage(ctx, b, chatID, text, nil); err != nil {
		slog.Error("send history", "chat_id", chatID, "error", err)
	}
}

func historyText(snap chat.Snapshot) string {
	var sb strings.Builder
	if snap.Mode == domain.ModeRoom {
		if snap.Chat.IsZero() {
			sb.WriteString("📂 No room selected.")
		} else {
			sb.WriteString("📂 Room " + snap.Chat.String())
		}
	} else if snap.SessionID != "" {
		sb.WriteString("🔗 Session " + snap.SessionID)
	} else {
		sb.WriteString("🖼 Waiting for an image.")
	}
	sb.WriteString("\n\n")
	sb.WriteString(telegram.RenderTimeline(snap.Messages))
	if snap.Error != "" {
		sb.WriteString("\n\n⚠️ " + snap.Error)
	}
	return sb.String()
}

func (h *Handler) handleModel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	o, err := h.chatFor(ctx, chatID)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}

	if name := commandArg(update.Message.Text); name != "" {
		h.setModel(ctx, b, chatID, o, name)
		return
	}
	current := o.Model()
	if current == "" {
		current = h.cfg.DefaultModel
	}
	telegram.SendText(ctx, b, chatID, modelText(current), telegram.ModelKeyboard(config.ModelNames, current))
}

func (h *Handler) handleModelSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	name := strings.TrimPrefix(cq.Data, telegram.CallbackModel)
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	chatID := cq.Message.Message.Chat.ID
	o, err := h.chatFor(ctx, chatID)
	if err != nil {
		h.reply(ctx, b, chatID, err)
		return
	}
	h.setModel(ctx, b, chatID, o, name)

	_, err = b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   cq.Message.Message.ID,
		ReplyMarkup: telegram.ModelKeyboard(config.ModelNames, name),
	})
	if err != nil {
		slog.Debug("edit model keyboard", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) setModel(ctx context.Context, b *bot.Bot, chatID int64, o *chat.Orchestrator, name string) {
	o.SetModel(name)
	if err := h.bindings.SetModel(ctx, chatID, name); err != nil {
		slog.Error("save model", "chat_id", chatID, "model", name, "error", err)
	}
	telegram.SendText(ctx, b, chatID, modelText(name), nil)
}

func modelText(name string) string {
	text := "🧠 Model: " + name
	if resolved := config.ResolveModel(name); !strings.EqualFold(resolved, name) {
		text += " (" + resolved + ")"
	}
	return text
}
