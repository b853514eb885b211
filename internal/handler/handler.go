package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/config"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/repository"
	"github.com/set-night/visionchat/internal/telegram"
)

// RoomClient manages rooms on the backend.
type RoomClient interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	CreateRoom(ctx context.Context, title string) (domain.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

type CredentialStore interface {
	SetToken(ctx context.Context, telegramUserID int64, token string) error
	DeleteToken(ctx context.Context, telegramUserID int64) error
}

type BindingStore interface {
	Get(ctx context.Context, telegramChatID int64) (repository.Binding, error)
	SetRoom(ctx context.Context, telegramChatID int64, room domain.ChatIdentity) error
	SetModel(ctx context.Context, telegramChatID int64, model string) error
	ClearRoom(ctx context.Context, room domain.ChatIdentity) (int64, error)
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot         *bot.Bot
	cfg         *config.Config
	mode        domain.Mode
	chats       *chat.Registry[int64]
	rooms       RoomClient
	credentials CredentialStore
	bindings    BindingStore
	adminLog    *telegram.AdminLogger
	roomList    *roomCache
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Chats       *chat.Registry[int64]
	Rooms       RoomClient
	Credentials CredentialStore
	Bindings    BindingStore
	AdminLog    *telegram.AdminLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	mode, err := deps.Cfg.Mode()
	if err != nil {
		mode = domain.ModeRoom
	}
	return &Handler{
		bot:         deps.Bot,
		cfg:         deps.Cfg,
		mode:        mode,
		chats:       deps.Chats,
		rooms:       deps.Rooms,
		credentials: deps.Credentials,
		bindings:    deps.Bindings,
		adminLog:    deps.AdminLog,
		roomList:    newRoomCache(config.RoomsCacheTTL),
	}
}
