// Package session decides whether a chat is room-bound or session-bound and
// tracks the reasoning session of session-bound chats.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/set-night/visionchat/internal/domain"
)

// TeardownTimeout bounds a best-effort session end call.
const TeardownTimeout = 5 * time.Second

type State int

const (
	// Room-bound states.
	StateNoRoom State = iota
	StateRoomSelected

	// Session-bound states.
	StateIdle
	StateAwaitingFirstImage
	StateActive
)

func (s State) String() string {
	switch s {
	case StateNoRoom:
		return "no-room"
	case StateRoomSelected:
		return "room-selected"
	case StateIdle:
		return "idle"
	case StateAwaitingFirstImage:
		return "awaiting-first-image"
	case StateActive:
		return "session-active"
	default:
		return "unknown"
	}
}

// Ender ends a reasoning session on the backend.
type Ender interface {
	EndReasoning(ctx context.Context, sessionID string) error
}

// Binder is the state machine of one chat identity. It holds no network
// resources itself; Detach hands the live session to the caller, who ends
// it with Teardown.
//
// Binder is not thread-safe.
type Binder struct {
	mode    domain.Mode
	state   State
	chat    domain.ChatIdentity
	session *domain.ReasoningSession
}

// NewBinder returns a binder for chat in the given mode.
func NewBinder(mode domain.Mode, chat domain.ChatIdentity) *Binder {
	b := &Binder{mode: mode, chat: chat}
	switch {
	case mode == domain.ModeSession:
		b.state = StateIdle
	case chat.IsZero():
		b.state = StateNoRoom
	default:
		b.state = StateRoomSelected
	}
	return b
}

func (b *Binder) Mode() domain.Mode {
	return b.mode
}

func (b *Binder) State() State {
	return b.state
}

func (b *Binder) Chat() domain.ChatIdentity {
	return b.chat
}

// Session returns the live reasoning session, if any.
func (b *Binder) Session() (domain.ReasoningSession, bool) {
	if b.session == nil {
		return domain.ReasoningSession{}, false
	}
	return *b.session, true
}

// AcceptsImage reports whether a file may be attached to the next turn.
// A session-bound chat with a live session is locked to its first image.
func (b *Binder) AcceptsImage() bool {
	return b.state != StateActive
}

// ImageSelected moves a session-bound chat between Idle and
// AwaitingFirstImage as a file is picked or cleared.
func (b *Binder) ImageSelected(selected bool) {
	switch b.state {
	case StateIdle:
		if selected {
			b.state = StateAwaitingFirstImage
		}
	case StateAwaitingFirstImage:
		if !selected {
			b.state = StateIdle
		}
	}
}

// CheckSend validates a send locally. It never touches the network.
func (b *Binder) CheckSend(hasFile bool) error {
	switch b.state {
	case StateNoRoom:
		return domain.ErrNoChat
	case StateIdle:
		if !hasFile {
			return domain.ErrImageRequired
		}
	}
	return nil
}

// Activate binds a newly opened reasoning session to image. It only applies
// while the chat is waiting for its first image.
func (b *Binder) Activate(sessionID string, image domain.ImageRef) bool {
	if b.mode != domain.ModeSession || b.state == StateActive || sessionID == "" {
		return false
	}
	b.session = &domain.ReasoningSession{ID: sessionID, Image: image}
	b.state = StateActive
	return true
}

// Detach moves the binder out of SessionActive and returns the session that
// must be torn down, if there was one.
func (b *Binder) Detach() (domain.ReasoningSession, bool) {
	s, ok := b.Session()
	b.session = nil
	if b.mode == domain.ModeSession {
		b.state = StateIdle
	}
	return s, ok
}

// Teardown ends a reasoning session on a best-effort basis. Failures are
// logged and dropped so a stuck server session never blocks the client.
func Teardown(ctx context.Context, ender Ender, sessionID string, logger *slog.Logger) {
	if ender == nil || sessionID == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, TeardownTimeout)
	defer cancel()

	start := time.Now()
	if err := ender.EndReasoning(ctx, sessionID); err != nil {
		logger.Debug("reasoning session teardown failed", "session_id", sessionID, "error", err)
		return
	}
	logger.Debug("reasoning session ended", "session_id", sessionID, "duration", time.Since(start))
}
