// Package events publishes chat turn outcomes to a message broker.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	Producer = "visionchat"

	TypeTurnCompleted = "visionchat.turn.completed.v1"
	TypeTurnFailed    = "visionchat.turn.failed.v1"
)

type Meta struct {
	// Correlates every event of one turn.
	CorrelationID *string `json:"correlation_id,omitempty"`
	// Unique event ID
	ID       string    `json:"id"`
	Producer *string   `json:"producer,omitempty"`
	Time     time.Time `json:"time"`
	// Event name and version, e.g. visionchat.turn.completed.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// TurnData describes one resolved send.
type TurnData struct {
	ChatID      string `json:"chat_id"`
	Mode        string `json:"mode"`
	SessionID   string `json:"session_id,omitempty"`
	PromptChars int    `json:"prompt_chars"`
	HadImage    bool   `json:"had_image"`
	Error       string `json:"error,omitempty"`
}

// NewTurnEnvelope wraps data in an envelope typed by its outcome.
func NewTurnEnvelope(correlationID string, data TurnData, now time.Time) Envelope {
	typ := TypeTurnCompleted
	if data.Error != "" {
		typ = TypeTurnFailed
	}
	producer := Producer
	meta := Meta{
		ID:       uuid.NewString(),
		Producer: &producer,
		Time:     now.UTC(),
		Type:     typ,
	}
	if correlationID != "" {
		meta.CorrelationID = &correlationID
	}
	return Envelope{Meta: meta, Data: data}
}
