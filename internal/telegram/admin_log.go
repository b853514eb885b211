package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
)

// AdminLogger forwards operational errors to the bot admins.
type AdminLogger struct {
	bot      *bot.Bot
	adminIDs []int64
}

func NewAdminLogger(b *bot.Bot, adminIDs []int64) *AdminLogger {
	return &AdminLogger{bot: b, adminIDs: adminIDs}
}

func (l *AdminLogger) LogError(err error, where string) {
	if l == nil || len(l.adminIDs) == 0 || err == nil {
		return
	}
	msg := fmt.Sprintf("❌ Error\n\nContext: %s\nError: %s\nTime: %s",
		where, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	if len([]rune(msg)) > MaxMessageLen {
		msg = string([]rune(msg)[:MaxMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, id := range l.adminIDs {
		if _, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: id, Text: msg}); err != nil {
			slog.Error("failed to notify admin", "admin_id", id, "error", err)
		}
	}
}
