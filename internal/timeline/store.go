// Package timeline holds the ordered message list of one chat.
//
// The list is append-only from the client's side: messages are never edited
// in place, and the only way to drop messages is a wholesale Reset or Load.
// A synthetic welcome message stands in for an empty list and is never mixed
// with real messages.
//
// Store is not thread-safe. The chat orchestrator serializes access.
package timeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/visionchat/internal/domain"
)

const (
	// WelcomeID identifies the synthetic welcome message.
	WelcomeID = "bot-welcome"
	// WelcomeText is shown while a chat has no messages.
	WelcomeText = "How can I help you today?"
)

// Store is the timeline of a single chat.
type Store struct {
	messages []domain.Message
	errText  string
	now      func() time.Time
}

// New returns a store showing only the welcome message.
func New() *Store {
	s := &Store{now: time.Now}
	s.Reset()
	return s
}

// Reset clears the timeline back to the welcome message and clears the error.
func (s *Store) Reset() {
	s.messages = []domain.Message{s.welcome()}
	s.errText = ""
}

// Load replaces the timeline with messages mapped from server records.
// An empty history shows the welcome message.
func (s *Store) Load(records []domain.MessageRecord) {
	if len(records) == 0 {
		s.messages = []domain.Message{s.welcome()}
		return
	}
	msgs := make([]domain.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, s.fromRecord(r))
	}
	s.messages = msgs
}

// AppendOptimistic appends a locally authored message before the server has
// confirmed anything about it.
func (s *Store) AppendOptimistic(msg domain.Message) {
	s.dropWelcome()
	s.messages = append(s.messages, msg)
}

// AppendConfirmed appends server-confirmed records verbatim and returns the
// messages it added.
func (s *Store) AppendConfirmed(records ...domain.MessageRecord) []domain.Message {
	if len(records) == 0 {
		return nil
	}
	s.dropWelcome()
	added := make([]domain.Message, 0, len(records))
	for _, r := range records {
		msg := s.fromRecord(r)
		s.messages = append(s.messages, msg)
		added = append(added, msg)
	}
	return added
}

// Messages returns a copy of the timeline, oldest first.
func (s *Store) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len counts real messages; the welcome placeholder does not count.
func (s *Store) Len() int {
	if s.IsEmpty() {
		return 0
	}
	return len(s.messages)
}

// IsEmpty reports whether only the welcome message is shown.
func (s *Store) IsEmpty() bool {
	return len(s.messages) == 1 && s.messages[0].ID == WelcomeID
}

// SetError records an inline error notice, e.g. a failed history load.
func (s *Store) SetError(text string) {
	s.errText = text
}

// Error returns the current inline error notice.
func (s *Store) Error() string {
	return s.errText
}

// NewMessage builds a locally authored message with a fresh id.
func (s *Store) NewMessage(role domain.Role, text string, image *domain.ImageRef) domain.Message {
	return domain.Message{
		ID:        "local-" + uuid.NewString(),
		Role:      role,
		Text:      text,
		Image:     image,
		CreatedAt: s.now(),
	}
}

func (s *Store) dropWelcome() {
	if s.IsEmpty() {
		s.messages = s.messages[:0]
	}
}

func (s *Store) welcome() domain.Message {
	return domain.Message{
		ID:        WelcomeID,
		Role:      domain.RoleAssistant,
		Text:      WelcomeText,
		CreatedAt: s.now(),
	}
}

// fromRecord maps a server record: role -> role, content -> text,
// image_data + image_mime_type -> data URL, created_at -> timestamp
// (absent or unparsable means now).
func (s *Store) fromRecord(r domain.MessageRecord) domain.Message {
	msg := domain.Message{
		ID:   string(r.ID),
		Role: domain.ParseRole(r.Role),
		Text: r.Content,
	}
	if msg.ID == "" {
		msg.ID = "server-" + uuid.NewString()
	}
	if r.ImageData != "" {
		mimeType := r.ImageMIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		msg.Image = &domain.ImageRef{
			Kind:     domain.ImageData,
			URL:      fmt.Sprintf("data:%s;base64,%s", mimeType, r.ImageData),
			Name:     r.ImageName,
			MIMEType: mimeType,
		}
	}
	if t, ok := domain.ParseTimestamp(r.CreatedAt); ok {
		msg.CreatedAt = t
	} else {
		msg.CreatedAt = s.now()
	}
	return msg
}
