package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/set-night/visionchat/internal/domain"
)

func TestLoad(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/visionchat")
	t.Setenv("ADMIN_IDS", "10,20")
	t.Setenv("CHAT_MODE", "session")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:5000" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 120*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.MaxImageBytes != 10<<20 {
		t.Errorf("MaxImageBytes = %d", cfg.MaxImageBytes)
	}
	if cfg.AMQPExchange != "visionchat.events" {
		t.Errorf("AMQPExchange = %q", cfg.AMQPExchange)
	}
	if mode, _ := cfg.Mode(); mode != domain.ModeSession {
		t.Errorf("Mode = %q", mode)
	}
	if !cfg.IsAdmin(20) || cfg.IsAdmin(30) {
		t.Errorf("AdminIDs = %v", cfg.AdminIDs)
	}
	if cfg.AdminIDsString() != "10,20" {
		t.Errorf("AdminIDsString = %q", cfg.AdminIDsString())
	}
}

func TestLoadRequiresBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	os.Unsetenv("BOT_TOKEN")
	t.Setenv("DATABASE_URL", "postgres://localhost/visionchat")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without BOT_TOKEN")
	}
}

func TestLoadTUI(t *testing.T) {
	t.Setenv("API_TOKEN", "tok")
	t.Setenv("ROOM_ID", "r1")
	t.Setenv("API_BASE_URL", "http://backend:5000")

	cfg, err := LoadTUI()
	if err != nil {
		t.Fatalf("LoadTUI: %v", err)
	}
	if cfg.APIToken != "tok" || cfg.RoomID != "r1" || cfg.APIBaseURL != "http://backend:5000" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("CHAT_MODE", "stream")

	_, err := LoadTUI()
	if !errors.Is(err, domain.ErrUnknownMode) {
		t.Fatalf("LoadTUI = %v, want ErrUnknownMode", err)
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"normal", BackendVisionModel},
		{"YOLO", BackendVisionModel},
		{" clip ", BackendVisionModel},
		{"", BackendVisionModel},
		{"llava:13b", "llava:13b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ResolveModel(tt.in); got != tt.want {
				t.Errorf("ResolveModel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
