package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"rfc3339", "2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{"rfc3339 offset", "2024-05-01T12:00:00+02:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{"naive iso", "2024-05-01T10:00:00.123456", time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC), true},
		{"sql", "2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), true},
		{"unix", "1714557600", time.Unix(1714557600, 0), true},
		{"empty", "", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlexIDUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  FlexID
	}{
		{`{"id":"abc"}`, "abc"},
		{`{"id":42}`, "42"},
		{`{"id":null}`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var rec MessageRecord
			if err := json.Unmarshal([]byte(tt.input), &rec); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if rec.ID != tt.want {
				t.Errorf("ID = %q, want %q", rec.ID, tt.want)
			}
		})
	}

	var rec MessageRecord
	if err := json.Unmarshal([]byte(`{"id":true}`), &rec); err == nil {
		t.Error("expected error for boolean id")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr error
	}{
		{"", ModeRoom, nil},
		{"room", ModeRoom, nil},
		{" Session ", ModeSession, nil},
		{"stream", "", ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseMode(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("USER") != RoleUser {
		t.Error("USER should map to user")
	}
	for _, s := range []string{"assistant", "system", ""} {
		if ParseRole(s) != RoleAssistant {
			t.Errorf("ParseRole(%q) should map to assistant", s)
		}
	}
}

func TestChatIdentity(t *testing.T) {
	if !NoChat.IsZero() || !ChatIdentity("  ").IsZero() {
		t.Error("blank identities must be zero")
	}
	if NoChat.String() != "<none>" {
		t.Errorf("String() = %q", NoChat.String())
	}
	if ChatIdentity("r1").IsZero() {
		t.Error("r1 is not zero")
	}
}
