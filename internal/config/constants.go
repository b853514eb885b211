package config

import (
	"strings"
	"time"
)

const (
	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Idle chats are closed after this long without an update.
	IdleEvictAfter = 30 * time.Minute
	EvictInterval  = 5 * time.Minute

	// Rate limit burst on top of the per-minute rate
	RateLimitBurst = 3

	// Shutdown grace for ending sessions and closing the broker
	ShutdownTimeout = 10 * time.Second

	// Rooms per page in the room picker
	RoomsPerPage  = 8
	RoomsCacheTTL = 2 * time.Minute

	// Title used when /new is sent without one
	DefaultRoomTitle = "New Chat"

	// Backend model every UI alias resolves to
	BackendVisionModel = "qwen3-vl:8b"
)

// ModelAliases maps UI model names to backend models.
var ModelAliases = map[string]string{
	"normal": BackendVisionModel,
	"yolo":   BackendVisionModel,
	"clip":   BackendVisionModel,
	"custom": BackendVisionModel,
}

// ModelNames lists the aliases in display order.
var ModelNames = []string{"normal", "yolo", "clip", "custom"}

// ResolveModel maps a UI model name to the backend model. Unknown names are
// passed through unchanged so a raw backend model can be selected.
func ResolveModel(name string) string {
	name = strings.TrimSpace(name)
	if m, ok := ModelAliases[strings.ToLower(name)]; ok {
		return m
	}
	if name == "" {
		return BackendVisionModel
	}
	return name
}
