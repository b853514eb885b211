// Package tui is a terminal chat client built on bubbletea. It drives one
// chat.Orchestrator; the orchestrator owns all chat state and the model only
// renders its snapshots.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/domain"
)

// RoomClient manages rooms on the backend.
type RoomClient interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	CreateRoom(ctx context.Context, title string) (domain.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

const defaultRoomTitle = "New Chat"

// chrome is the number of lines around the timeline: header, status,
// notice, input and hint.
const chrome = 6

type Model struct {
	ctx   context.Context
	chat  *chat.Orchestrator
	rooms RoomClient

	input    textinput.Model
	spin     spinner.Model
	timeline viewport.Model

	width    int
	height   int
	busy     bool
	notice   string
	noticeOK bool
	rendered int
}

// New returns a model driving o. ctx bounds every backend call it issues.
func New(ctx context.Context, o *chat.Orchestrator, rooms RoomClient) Model {
	in := textinput.New()
	in.Placeholder = "Ask about an image, or /help"
	in.Prompt = "› "
	in.Focus()
	in.CharLimit = 0
	in.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = assistantStyle

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	m := Model{
		ctx:      ctx,
		chat:     o,
		rooms:    rooms,
		input:    in,
		spin:     s,
		timeline: vp,
		rendered: -1,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-chrome, 3)
		m.rendered = -1
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}

	case turnMsg:
		m.busy = false
		switch {
		case errors.Is(msg.err, domain.ErrStaleChat):
			m.setNotice("Reply dropped: the chat changed while it was loading.", false)
		case msg.res.SessionID != "":
			m.setNotice("Session "+msg.res.SessionID+" started.", true)
		case msg.err != nil && !msg.res.Failed:
			m.setNotice(backendNotice(msg.err), false)
		}
		m.refresh()
		return m, nil

	case attachedMsg:
		m.busy = false
		if msg.err != nil {
			m.setNotice(msg.err.Error(), false)
		} else {
			m.setNotice("Attached "+msg.name+".", true)
		}
		m.refresh()
		return m, nil

	case roomsMsg:
		m.busy = false
		if msg.err != nil {
			m.setNotice(backendNotice(msg.err), false)
		} else {
			m.setNotice(roomList(msg.rooms, m.chat.Chat()), true)
		}
		return m, nil

	case switchedMsg:
		m.busy = false
		switch {
		case msg.err != nil && !errors.Is(msg.err, domain.ErrStaleChat):
			m.setNotice(backendNotice(msg.err), false)
		case msg.notice != "":
			m.setNotice(msg.notice, true)
		}
		m.refresh()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles the input line. Prompts are validated synchronously so the
// optimistic user message shows up before the request is sent.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if c, ok := parseCommand(text); ok {
		m.input.SetValue("")
		return m.runCommand(c)
	}

	turn, err := m.chat.Prepare(text)
	if err != nil {
		m.setNotice(err.Error(), false)
		m.refresh()
		return m, nil
	}
	m.input.SetValue("")
	m.notice = ""
	m.busy = true
	m.refresh()
	return m, runTurn(m.ctx, turn)
}

func (m Model) runCommand(c command) (tea.Model, tea.Cmd) {
	sessionMode := m.chat.Mode() == domain.ModeSession
	if sessionMode {
		switch c.name {
		case "rooms", "room", "new", "delete":
			m.setNotice("Rooms are not available in session mode.", false)
			return m, nil
		}
	}

	switch c.name {
	case "quit", "exit":
		return m, tea.Quit
	case "help":
		m.setNotice(helpText, true)
		return m, nil
	case "attach":
		m.busy = true
		return m, attach(m.chat, c.arg)
	case "detach":
		m.chat.ClearFile()
		m.setNotice("Attachment removed.", true)
		m.refresh()
		return m, nil
	case "model":
		if c.arg == "" {
			m.setNotice("Model: "+m.chat.Model(), true)
			return m, nil
		}
		m.chat.SetModel(c.arg)
		m.setNotice("Model set to "+c.arg+".", true)
		m.refresh()
		return m, nil
	case "rooms":
		m.busy = true
		return m, listRooms(m.ctx, m.rooms)
	case "room":
		if c.arg == "" {
			m.setNotice("usage: /room <id>", false)
			return m, nil
		}
		m.busy = true
		return m, switchTo(m.ctx, m.chat, domain.ChatIdentity(c.arg), "Opened room "+c.arg+".")
	case "new":
		title := c.arg
		if title == "" {
			title = defaultRoomTitle
		}
		m.busy = true
		return m, createRoom(m.ctx, m.chat, m.rooms, title)
	case "delete":
		id := m.chat.Chat()
		if id.IsZero() {
			m.setNotice(domain.ErrNoChat.Error(), false)
			return m, nil
		}
		m.busy = true
		return m, deleteRoom(m.ctx, m.chat, m.rooms, id)
	case "leave":
		next := domain.NoChat
		if sessionMode {
			next = freshConversation()
		}
		m.busy = true
		return m, switchTo(m.ctx, m.chat, next, "Left the conversation.")
	default:
		m.setNotice(fmt.Sprintf("unknown command /%s; try /help", c.name), false)
		return m, nil
	}
}

func (m *Model) setNotice(text string, ok bool) {
	m.notice = text
	m.noticeOK = ok
}

// refresh re-renders the timeline from the orchestrator. The viewport only
// jumps to the bottom when messages were added.
func (m *Model) refresh() {
	snap := m.chat.Snapshot()
	m.timeline.SetContent(renderTimeline(snap.Messages, m.timeline.Width))
	if len(snap.Messages) != m.rendered {
		m.timeline.GotoBottom()
		m.rendered = len(snap.Messages)
	}
}

func (m Model) View() string {
	snap := m.chat.Snapshot()

	var b strings.Builder
	b.WriteString(headerStyle.Render("visionchat") + " " + statusStyle.Render(statusLine(snap)) + "\n")
	b.WriteString(m.timeline.View() + "\n")

	switch {
	case snap.Loading || m.busy:
		b.WriteString(m.spin.View() + " " + assistantStyle.Render("Thinking…"))
	case snap.Error != "":
		b.WriteString(errorStyle.Render("⚠ " + snap.Error))
	}
	b.WriteString("\n")
	if m.notice != "" {
		style := errorStyle
		if m.noticeOK {
			style = noticeStyle
		}
		b.WriteString(style.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View() + "\n")
	b.WriteString(hintStyle.Render("Enter to send · /help for commands · Esc to quit"))
	return b.String()
}
