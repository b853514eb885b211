package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/telegram"
)

// Logging returns middleware that logs update processing time.
func Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			origin := telegram.OriginOf(update)

			next(ctx, b, update)

			slog.Debug("update processed",
				"type", origin.Kind,
				"chat_id", origin.ChatID,
				"user_id", origin.UserID,
				"duration", time.Since(start),
			)
		}
	}
}
