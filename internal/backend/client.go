// Package backend is the HTTP client for the vision chat server: room
// history and turns, reasoning sessions, and room management.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/set-night/visionchat/internal/domain"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialProvider
}

func NewClient(baseURL string, timeout time.Duration, creds CredentialProvider) *Client {
	if creds == nil {
		creds = StaticToken("")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
	}
}

// WithCredentials returns a client sharing the same transport but reading
// tokens from creds.
func (c *Client) WithCredentials(creds CredentialProvider) *Client {
	if creds == nil {
		creds = StaticToken("")
	}
	clone := *c
	clone.creds = creds
	return &clone
}

// TurnRequest is one outgoing prompt. Image and SessionID are mutually
// exclusive on the reasoning endpoint.
type TurnRequest struct {
	Prompt    string
	Model     string
	Image     *domain.ImageFile
	SessionID string
}

type RoomReply struct {
	UserMessage      *domain.MessageRecord `json:"user_message"`
	AssistantMessage *domain.MessageRecord `json:"assistant_message"`
}

type ReasonReply struct {
	LLMResponse string `json:"llm_response"`
	Model       string `json:"model"`
	SessionID   string `json:"session_id"`
}

type roomRecord struct {
	ID        domain.FlexID `json:"id"`
	Title     string        `json:"title"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

func (r roomRecord) toDomain() domain.Room {
	room := domain.Room{ID: string(r.ID), Title: r.Title}
	room.CreatedAt, _ = domain.ParseTimestamp(r.CreatedAt)
	room.UpdatedAt, _ = domain.ParseTimestamp(r.UpdatedAt)
	return room
}

func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var resp struct {
		Rooms []roomRecord `json:"rooms"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chat/rooms", nil, true, &resp); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]domain.Room, 0, len(resp.Rooms))
	for _, r := range resp.Rooms {
		rooms = append(rooms, r.toDomain())
	}
	return rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, title string) (domain.Room, error) {
	var resp struct {
		Room *roomRecord `json:"room"`
	}
	body := map[string]string{"title": strings.TrimSpace(title)}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/rooms", body, true, &resp); err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	if resp.Room == nil || resp.Room.ID == "" {
		return domain.Room{}, errors.New("create room: server returned no room")
	}
	return resp.Room.toDomain(), nil
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	err := c.doJSON(ctx, http.MethodDelete, roomPath(roomID), nil, true, nil)
	if err != nil {
		return fmt.Errorf("delete room: %w", roomErr(err))
	}
	return nil
}

// History returns the stored messages of a room, oldest first.
func (c *Client) History(ctx context.Context, roomID string) ([]domain.MessageRecord, error) {
	var resp struct {
		Messages []domain.MessageRecord `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, roomPath(roomID)+"/messages", nil, true, &resp); err != nil {
		return nil, fmt.Errorf("load history: %w", roomErr(err))
	}
	return resp.Messages, nil
}

// SendRoomMessage appends a turn to a room. The server stores both sides of
// the turn and echoes them back.
func (c *Client) SendRoomMessage(ctx context.Context, roomID string, turn TurnRequest) (RoomReply, error) {
	body, contentType, err := encodeTurn(turn, false)
	if err != nil {
		return RoomReply{}, err
	}

	var reply RoomReply
	if err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/messages", contentType, body, true, &reply); err != nil {
		return RoomReply{}, fmt.Errorf("send message: %w", roomErr(err))
	}
	return reply, nil
}

// Reason sends a session-bound turn. The first turn of a session carries the
// image; later turns carry only the session id.
func (c *Client) Reason(ctx context.Context, turn TurnRequest) (ReasonReply, error) {
	body, contentType, err := encodeTurn(turn, true)
	if err != nil {
		return ReasonReply{}, err
	}

	var reply ReasonReply
	if err := c.do(ctx, http.MethodPost, "/reason", contentType, body, false, &reply); err != nil {
		return ReasonReply{}, fmt.Errorf("reason: %w", err)
	}
	return reply, nil
}

// EndReasoning ends a reasoning session. The response body is ignored.
func (c *Client) EndReasoning(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	if err := c.doJSON(ctx, http.MethodPost, "/reason/end", body, false, nil); err != nil {
		return fmt.Errorf("end reasoning: %w", err)
	}
	return nil
}

func roomPath(roomID string) string {
	return "/chat/rooms/" + url.PathEscape(roomID)
}

func roomErr(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrRoomNotFound, err)
	}
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeTurn(turn TurnRequest, reasoning bool) (*bytes.Buffer, string, error) {
	if reasoning && turn.Image != nil && turn.SessionID != "" {
		return nil, "", errors.New("encode turn: image and session id are mutually exclusive")
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{{"prompt", turn.Prompt}, {"model", turn.Model}}
	if turn.SessionID != "" {
		fields = append(fields, [2]string{"session_id", turn.SessionID})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("encode turn: %w", err)
		}
	}

	if turn.Image != nil {
		mimeType := turn.Image.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(turn.Image.Name)))
		h.Set("Content-Type", mimeType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("encode turn: %w", err)
		}
		if _, err := part.Write(turn.Image.Data); err != nil {
			return nil, "", fmt.Errorf("encode turn: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode turn: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, auth bool, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, auth, out)
}

// do sends one request. When auth is set a missing token fails the call
// before anything is sent; otherwise the token is attached if present.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, auth bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	token, ok := c.creds.Token(ctx)
	switch {
	case ok:
		req.Header.Set("Authorization", "Bearer "+token)
	case auth:
		return domain.ErrNoCredential
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, resp.Header.Get("Content-Type"), data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
