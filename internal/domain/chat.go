package domain

import (
	"strings"
	"time"
)

// ChatIdentity names the active conversation. The zero value means no chat
// is selected.
type ChatIdentity string

const NoChat ChatIdentity = ""

func (c ChatIdentity) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

func (c ChatIdentity) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return string(c)
}

// Mode selects how turns are sent to the backend.
type Mode string

const (
	// ModeRoom persists every turn server-side per room.
	ModeRoom Mode = "room"
	// ModeSession anchors an ephemeral reasoning session to one image.
	ModeSession Mode = "session"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRoom, "":
		return ModeRoom, nil
	case ModeSession:
		return ModeSession, nil
	default:
		return "", ErrUnknownMode
	}
}

type Room struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type ReasoningSession struct {
	ID    string
	Image ImageRef
}
