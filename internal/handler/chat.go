package handler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/domain"
)

// chatFor returns the orchestrator of a Telegram chat. A chat seen for the
// first time since startup gets its stored room and model back before any
// update can use it.
func (h *Handler) chatFor(ctx context.Context, chatID int64) (*chat.Orchestrator, error) {
	o := h.chats.Acquire(ctx, chatID, func(ctx context.Context, o *chat.Orchestrator) {
		h.restore(ctx, chatID, o)
	})
	if o == nil {
		return nil, domain.ErrClosed
	}
	return o, nil
}

func (h *Handler) restore(ctx context.Context, chatID int64, o *chat.Orchestrator) {
	binding, err := h.bindings.Get(ctx, chatID)
	if err != nil {
		slog.Error("load chat binding", "chat_id", chatID, "error", err)
	}
	if binding.Model != "" {
		o.SetModel(binding.Model)
	}

	id := binding.RoomID
	if h.mode == domain.ModeSession {
		id = newConversation()
	}
	if id.IsZero() {
		return
	}
	if err := o.SwitchChat(ctx, id); err != nil {
		slog.Warn("restore chat", "chat_id", chatID, "room_id", id.String(), "error", err)
	}
}

// newConversation labels a session-bound conversation. The label never
// reaches the backend; a fresh one starts a fresh session.
func newConversation() domain.ChatIdentity {
	return domain.ChatIdentity("conv-" + uuid.NewString())
}
