package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/visionchat/internal/domain"
)

// Binding is what a Telegram chat had selected when it was last active.
type Binding struct {
	RoomID domain.ChatIdentity
	Model  string
}

// BindingStore persists the active room and model of each Telegram chat.
type BindingStore struct {
	pool *pgxpool.Pool
}

func NewBindingStore(pool *pgxpool.Pool) *BindingStore {
	return &BindingStore{pool: pool}
}

// Get returns the chat's binding. A chat never seen returns the zero Binding.
func (s *BindingStore) Get(ctx context.Context, telegramChatID int64) (Binding, error) {
	var (
		roomID *string
		b      Binding
	)
	err := s.pool.QueryRow(ctx,
		`SELECT room_id, model FROM chat_bindings WHERE telegram_chat_id = $1`,
		telegramChatID,
	).Scan(&roomID, &b.Model)
	if errors.Is(err, pgx.ErrNoRows) {
		return Binding{}, nil
	}
	if err != nil {
		return Binding{}, fmt.Errorf("get chat binding: %w", err)
	}
	if roomID != nil {
		b.RoomID = domain.ChatIdentity(*roomID)
	}
	return b, nil
}

// SetRoom stores the active room. NoChat clears it.
func (s *BindingStore) SetRoom(ctx context.Context, telegramChatID int64, room domain.ChatIdentity) error {
	var roomID *string
	if !room.IsZero() {
		id := string(room)
		roomID = &id
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_bindings (telegram_chat_id, room_id)
		VALUES ($1, $2)
		ON CONFLICT (telegram_chat_id)
		DO UPDATE SET room_id = EXCLUDED.room_id, updated_at = NOW()`,
		telegramChatID, roomID,
	)
	if err != nil {
		return fmt.Errorf("set chat room: %w", err)
	}
	return nil
}

func (s *BindingStore) SetModel(ctx context.Context, telegramChatID int64, model string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_bindings (telegram_chat_id, model)
		VALUES ($1, $2)
		ON CONFLICT (telegram_chat_id)
		DO UPDATE SET model = EXCLUDED.model, updated_at = NOW()`,
		telegramChatID, model,
	)
	if err != nil {
		return fmt.Errorf("set chat model: %w", err)
	}
	return nil
}

// ClearRoom unbinds every chat from a deleted room and returns how many
// chats were affected.
func (s *BindingStore) ClearRoom(ctx context.Context, room domain.ChatIdentity) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chat_bindings SET room_id = NULL, updated_at = NOW() WHERE room_id = $1`,
		string(room),
	)
	if err != nil {
		return 0, fmt.Errorf("clear room bindings: %w", err)
	}
	return tag.RowsAffected(), nil
}
