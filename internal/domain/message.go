package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a wire role to a Role. Anything that is not "user" is
// rendered as the assistant.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleUser)) {
		return RoleUser
	}
	return RoleAssistant
}

type ImageKind int

const (
	// ImageLocal points at a preview file created on this machine.
	ImageLocal ImageKind = iota
	// ImageData is a data URL built from server-provided bytes.
	ImageData
)

type ImageRef struct {
	Kind     ImageKind
	URL      string
	Name     string
	MIMEType string
}

// ImageFile is a user-selected image that has not been uploaded yet.
type ImageFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (f ImageFile) Size() int {
	return len(f.Data)
}

type Message struct {
	ID        string
	Role      Role
	Text      string
	Image     *ImageRef
	CreatedAt time.Time
}

// FlexID accepts either a JSON string or a JSON number.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// MessageRecord is a message as the backend stores and returns it.
type MessageRecord struct {
	ID            FlexID `json:"id"`
	RoomID        string `json:"room_id,omitempty"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	ImageName     string `json:"image_name,omitempty"`
	ImageData     string `json:"image_data,omitempty"`
	ImageMIMEType string `json:"image_mime_type,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the timestamp formats the backend is known to emit.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0), true
	}
	return time.Time{}, false
}
