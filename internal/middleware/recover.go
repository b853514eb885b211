package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/telegram"
)

// ErrorReporter receives recovered panics.
type ErrorReporter interface {
	LogError(err error, where string)
}

// Recover returns middleware that recovers from panics, tells the chat that
// its update failed and reports the panic.
func Recover(reporter ErrorReporter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				origin := telegram.OriginOf(update)
				slog.Error("panic recovered in handler",
					"panic", r,
					"chat_id", origin.ChatID,
					"stack", string(debug.Stack()),
				)
				if reporter != nil {
					reporter.LogError(fmt.Errorf("panic: %v", r), "update "+origin.Kind)
				}
				if origin.ChatID != 0 && b != nil {
					telegram.SendText(ctx, b, origin.ChatID, "Something went wrong. Please try again.", nil)
				}
			}()
			next(ctx, b, update)
		}
	}
}
