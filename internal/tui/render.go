package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/domain"
)

func renderMessage(m domain.Message, width int) string {
	label := assistantStyle.Render("Assistant:")
	if m.Role == domain.RoleUser {
		label = userStyle.Render("You:")
	}
	var sb strings.Builder
	sb.WriteString(label)
	if m.Image != nil {
		sb.WriteString(" " + imageStyle.Render("[image: "+imageLabel(*m.Image)+"]"))
	}
	text := m.Text
	if width > 4 {
		text = lipgloss.NewStyle().Width(width - 2).Render(text)
	}
	sb.WriteString("\n" + text)
	return sb.String()
}

func imageLabel(ref domain.ImageRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	if ref.Kind == domain.ImageData {
		return "inline image"
	}
	return ref.URL
}

func renderTimeline(msgs []domain.Message, width int) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, renderMessage(m, width))
	}
	return strings.Join(parts, "\n\n")
}

// statusLine summarizes mode, chat, model and attachment.
func statusLine(s chat.Snapshot) string {
	parts := []string{"mode: " + string(s.Mode)}
	if s.Mode == domain.ModeRoom {
		parts = append(parts, "room: "+s.Chat.String())
	} else {
		sessionID := s.SessionID
		if sessionID == "" {
			sessionID = "<none>"
		}
		parts = append(parts, "session: "+sessionID)
	}
	if s.Model != "" {
		parts = append(parts, "model: "+s.Model)
	}
	if s.HasFile {
		parts = append(parts, "attached: "+s.FileName)
	}
	if s.Closed {
		parts = append(parts, "closed")
	}
	return strings.Join(parts, " | ")
}

func roomList(rooms []domain.Room, active domain.ChatIdentity) string {
	if len(rooms) == 0 {
		return "No rooms yet. Create one with /new [title]."
	}
	lines := make([]string, 0, len(rooms))
	for _, r := range rooms {
		marker := " "
		if domain.ChatIdentity(r.ID) == active {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s", marker, r.ID, r.Title))
	}
	return "Rooms (open with /room <id>):\n" + strings.Join(lines, "\n")
}

var localErrors = []error{
	domain.ErrNoChat,
	domain.ErrRequestInFlight,
	domain.ErrNoCredential,
	domain.ErrRoomNotFound,
	domain.ErrClosed,
}

// backendNotice is the text shown for a failed backend call. Transport
// details stay in the log file.
func backendNotice(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	for _, known := range localErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return chat.GenericFailure
}
