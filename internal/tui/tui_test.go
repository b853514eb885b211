package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/domain"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubBackend struct {
	mu     sync.Mutex
	ended  []string
	reason backend.ReasonReply
}

func (s *stubBackend) History(ctx context.Context, roomID string) ([]domain.MessageRecord, error) {
	return []domain.MessageRecord{{ID: "1", Role: "assistant", Content: "earlier answer"}}, nil
}

func (s *stubBackend) SendRoomMessage(ctx context.Context, roomID string, turn backend.TurnRequest) (backend.RoomReply, error) {
	return backend.RoomReply{
		UserMessage:      &domain.MessageRecord{ID: "2", Role: "user", Content: turn.Prompt},
		AssistantMessage: &domain.MessageRecord{ID: "3", Role: "assistant", Content: "a cat"},
	}, nil
}

func (s *stubBackend) Reason(ctx context.Context, turn backend.TurnRequest) (backend.ReasonReply, error) {
	return s.reason, nil
}

func (s *stubBackend) EndReasoning(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, sessionID)
	return nil
}

type stubRooms struct {
	rooms   []domain.Room
	deleted []string
}

func (s *stubRooms) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.rooms, nil
}

func (s *stubRooms) CreateRoom(ctx context.Context, title string) (domain.Room, error) {
	r := domain.Room{ID: "new-room", Title: title}
	s.rooms = append(s.rooms, r)
	return r, nil
}

func (s *stubRooms) DeleteRoom(ctx context.Context, roomID string) error {
	s.deleted = append(s.deleted, roomID)
	return nil
}

func newTestModel(t *testing.T, mode domain.Mode, b *stubBackend) (Model, *chat.Orchestrator) {
	t.Helper()
	o := chat.New(b, chat.Options{Mode: mode, Model: "normal", PreviewDir: t.TempDir()})
	t.Cleanup(func() { o.Close(context.Background()) })
	return New(context.Background(), o, &stubRooms{}), o
}

// enter types text and presses Enter.
func enter(m Model, text string) (Model, tea.Cmd) {
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// drain runs cmd and feeds its message back into the model.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input  string
		want   command
		wantOK bool
	}{
		{"hello", command{}, false},
		{"  /quit ", command{name: "quit"}, true},
		{"/ATTACH ~/cat.png", command{name: "attach", arg: "~/cat.png"}, true},
		{"/new  Holiday photos ", command{name: "new", arg: "Holiday photos"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseCommand(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, %v; want %+v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, pngData, 0o600); err != nil {
		t.Fatal(err)
	}
	img, err := readImage(path)
	if err != nil {
		t.Fatalf("readImage() error = %v", err)
	}
	if img.Name != "cat.png" || img.MIMEType != "image/png" || img.Size() != len(pngData) {
		t.Errorf("readImage() = %+v", img)
	}

	if _, err := readImage(""); err == nil {
		t.Error("readImage(\"\") should fail")
	}
	if _, err := readImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("readImage(missing) should fail")
	}
}

func TestRoomTurn(t *testing.T) {
	m, o := newTestModel(t, domain.ModeRoom, &stubBackend{})

	m, cmd := enter(m, "/room r1")
	m = drain(t, m, cmd)
	if o.Chat() != "r1" {
		t.Fatalf("active chat = %q, want r1", o.Chat())
	}

	m, cmd = enter(m, "what is this?")
	if !m.busy {
		t.Error("model should be busy while the turn runs")
	}
	if m.input.Value() != "" {
		t.Errorf("input = %q, want cleared", m.input.Value())
	}
	m = drain(t, m, cmd)
	if m.busy {
		t.Error("model still busy after the turn resolved")
	}

	msgs := o.Snapshot().Messages
	var texts []string
	for _, msg := range msgs {
		texts = append(texts, msg.Text)
	}
	want := []string{"earlier answer", "what is this?", "a cat"}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("timeline = %q, want %q", texts, want)
	}
}

func TestPromptWithoutRoomShowsError(t *testing.T) {
	m, _ := newTestModel(t, domain.ModeRoom, &stubBackend{})
	m, cmd := enter(m, "hello")
	if cmd != nil {
		t.Error("no request should be sent without a room")
	}
	if m.noticeOK || m.notice != domain.ErrNoChat.Error() {
		t.Errorf("notice = %q (ok=%v)", m.notice, m.noticeOK)
	}
	if m.input.Value() != "hello" {
		t.Errorf("input = %q, want the draft kept", m.input.Value())
	}
}

func TestSessionFlow(t *testing.T) {
	b := &stubBackend{reason: backend.ReasonReply{LLMResponse: "a dog", SessionID: "s-1"}}
	m, o := newTestModel(t, domain.ModeSession, b)

	m, cmd := enter(m, "describe")
	if cmd != nil {
		t.Fatal("prompt without an image must not be sent")
	}
	if !strings.Contains(m.notice, "image") {
		t.Errorf("notice = %q, want an image hint", m.notice)
	}

	path := filepath.Join(t.TempDir(), "dog.png")
	if err := os.WriteFile(path, pngData, 0o600); err != nil {
		t.Fatal(err)
	}
	m, cmd = enter(m, "/attach "+path)
	m = drain(t, m, cmd)
	if !o.Snapshot().HasFile {
		t.Fatalf("file not attached: notice %q", m.notice)
	}

	m, cmd = enter(m, "describe")
	m = drain(t, m, cmd)
	if got := o.Snapshot().SessionID; got != "s-1" {
		t.Errorf("session = %q, want s-1", got)
	}
	if !strings.Contains(m.notice, "s-1") {
		t.Errorf("notice = %q, want session start", m.notice)
	}

	m, cmd = enter(m, "/rooms")
	if cmd != nil || m.noticeOK {
		t.Error("/rooms should be refused in session mode")
	}

	m, cmd = enter(m, "/leave")
	drain(t, m, cmd)
	if o.Snapshot().SessionID != "" {
		t.Error("session still active after /leave")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ended) != 1 || b.ended[0] != "s-1" {
		t.Errorf("ended sessions = %v, want [s-1]", b.ended)
	}
}

func TestRoomCommands(t *testing.T) {
	m, o := newTestModel(t, domain.ModeRoom, &stubBackend{})
	rooms := m.rooms.(*stubRooms)

	m, cmd := enter(m, "/new")
	m = drain(t, m, cmd)
	if o.Chat() != "new-room" || rooms.rooms[0].Title != defaultRoomTitle {
		t.Fatalf("chat = %q, rooms = %+v", o.Chat(), rooms.rooms)
	}

	m, cmd = enter(m, "/rooms")
	m = drain(t, m, cmd)
	if !strings.Contains(m.notice, "* new-room") {
		t.Errorf("notice = %q, want the active room marked", m.notice)
	}

	m, cmd = enter(m, "/delete")
	drain(t, m, cmd)
	if !o.Chat().IsZero() || len(rooms.deleted) != 1 {
		t.Errorf("chat = %q, deleted = %v", o.Chat(), rooms.deleted)
	}
}

func TestModelAndUnknownCommands(t *testing.T) {
	m, o := newTestModel(t, domain.ModeRoom, &stubBackend{})

	m, _ = enter(m, "/model yolo")
	if o.Model() != "yolo" {
		t.Errorf("model = %q, want yolo", o.Model())
	}
	m, _ = enter(m, "/bogus")
	if m.noticeOK || !strings.Contains(m.notice, "/bogus") {
		t.Errorf("notice = %q", m.notice)
	}
	_, cmd := enter(m, "/quit")
	if cmd == nil {
		t.Fatal("/quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("/quit did not quit")
	}
}

func TestStatusLine(t *testing.T) {
	got := statusLine(chat.Snapshot{Mode: domain.ModeRoom, Chat: "r1", Model: "normal", HasFile: true, FileName: "a.png"})
	want := "mode: room | room: r1 | model: normal | attached: a.png"
	if got != want {
		t.Errorf("statusLine() = %q, want %q", got, want)
	}
	got = statusLine(chat.Snapshot{Mode: domain.ModeSession})
	if got != "mode: session | session: <none>" {
		t.Errorf("statusLine(session) = %q", got)
	}
}

func TestBackendNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api message", fmt.Errorf("list rooms: %w", &backend.APIError{Status: 401, Message: "Token is invalid"}), "Token is invalid"},
		{"known error", fmt.Errorf("list rooms: %w", domain.ErrNoCredential), domain.ErrNoCredential.Error()},
		{"transport", errors.New(`list rooms: Get "http://127.0.0.1:5000/chat/rooms": dial tcp: connection refused`), chat.GenericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backendNotice(tt.err); got != tt.want {
				t.Errorf("backendNotice() = %q, want %q", got, tt.want)
			}
		})
	}
}
