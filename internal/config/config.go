package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/set-night/visionchat/internal/domain"
)

// ClientConfig is shared by every front-end.
type ClientConfig struct {
	// Backend
	APIBaseURL     string        `env:"API_BASE_URL" envDefault:"http://127.0.0.1:5000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`

	// Chat behavior
	ChatMode        string `env:"CHAT_MODE" envDefault:"room"`
	DefaultModel    string `env:"DEFAULT_MODEL" envDefault:"normal"`
	MaxPromptTokens int    `env:"MAX_PROMPT_TOKENS" envDefault:"0"`
	MaxImageBytes   int64  `env:"MAX_IMAGE_BYTES" envDefault:"10485760"`
	PreviewDir      string `env:"PREVIEW_DIR"`

	// Turn events
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"visionchat.events"`
}

// Mode parses ChatMode.
func (c ClientConfig) Mode() (domain.Mode, error) {
	return domain.ParseMode(c.ChatMode)
}

// Config is the Telegram bot configuration.
type Config struct {
	ClientConfig

	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
	RateLimitPerMinute int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
}

// TUIConfig is the terminal client configuration.
type TUIConfig struct {
	ClientConfig

	APIToken string `env:"API_TOKEN"`
	LogFile  string `env:"LOG_FILE"`
	RoomID   string `env:"ROOM_ID"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadTUI() (*TUIConfig, error) {
	cfg := &TUIConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c ClientConfig) validate() error {
	if _, err := c.Mode(); err != nil {
		return fmt.Errorf("parse config: CHAT_MODE: %w", err)
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("parse config: API_BASE_URL is empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("parse config: REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	return slices.Contains(c.AdminIDs, telegramID)
}

func (c *Config) AdminIDsString() string {
	parts := make([]string, len(c.AdminIDs))
	for i, id := range c.AdminIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
