package tui

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/domain"
)

// command is a parsed slash command.
type command struct {
	name string
	arg  string
}

// parseCommand splits "/name arg" input. Input that does not start with a
// slash is a prompt.
func parseCommand(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(input[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

const helpText = "/attach <path>  /detach  /rooms  /room <id>  /new [title]  /delete  /leave  /model <name>  /quit"

// Messages produced by commands.
type (
	turnMsg struct {
		res chat.Result
		err error
	}
	attachedMsg struct {
		name string
		err  error
	}
	roomsMsg struct {
		rooms []domain.Room
		err   error
	}
	switchedMsg struct {
		notice string
		err    error
	}
)

func runTurn(ctx context.Context, turn *chat.Turn) tea.Cmd {
	return func() tea.Msg {
		res, err := turn.Run(ctx)
		return turnMsg{res: res, err: err}
	}
}

// readImage loads path as the image of the next turn.
func readImage(path string) (domain.ImageFile, error) {
	path = strings.Trim(path, `"'`)
	if path == "" {
		return domain.ImageFile{}, fmt.Errorf("usage: /attach <path>")
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImageFile{}, fmt.Errorf("read image: %w", err)
	}
	return domain.ImageFile{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:     data,
	}, nil
}

func attach(o *chat.Orchestrator, path string) tea.Cmd {
	return func() tea.Msg {
		img, err := readImage(path)
		if err != nil {
			return attachedMsg{err: err}
		}
		if err := o.SelectFile(img); err != nil {
			return attachedMsg{err: err}
		}
		return attachedMsg{name: img.Name}
	}
}

func listRooms(ctx context.Context, rooms RoomClient) tea.Cmd {
	return func() tea.Msg {
		list, err := rooms.ListRooms(ctx)
		return roomsMsg{rooms: list, err: err}
	}
}

func switchTo(ctx context.Context, o *chat.Orchestrator, id domain.ChatIdentity, notice string) tea.Cmd {
	return func() tea.Msg {
		return switchedMsg{notice: notice, err: o.SwitchChat(ctx, id)}
	}
}

func createRoom(ctx context.Context, o *chat.Orchestrator, rooms RoomClient, title string) tea.Cmd {
	return func() tea.Msg {
		room, err := rooms.CreateRoom(ctx, title)
		if err != nil {
			return switchedMsg{err: err}
		}
		return switchedMsg{
			notice: fmt.Sprintf("Created room %q (%s).", room.Title, room.ID),
			err:    o.SwitchChat(ctx, domain.ChatIdentity(room.ID)),
		}
	}
}

func deleteRoom(ctx context.Context, o *chat.Orchestrator, rooms RoomClient, id domain.ChatIdentity) tea.Cmd {
	return func() tea.Msg {
		if err := rooms.DeleteRoom(ctx, string(id)); err != nil {
			return switchedMsg{err: err}
		}
		return switchedMsg{
			notice: "Deleted room " + id.String() + ".",
			err:    o.SwitchChat(ctx, domain.NoChat),
		}
	}
}

// freshConversation starts a new session-bound conversation.
func freshConversation() domain.ChatIdentity {
	return domain.ChatIdentity("tui-" + uuid.NewString())
}
