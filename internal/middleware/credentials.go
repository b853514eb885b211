package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/telegram"
)

type ctxKey string

const tokenKey ctxKey = "backend_token"

// TokenStore looks up the backend token of a Telegram user.
type TokenStore interface {
	Token(ctx context.Context, telegramUserID int64) (string, error)
}

// WithToken returns ctx carrying token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the token loaded for the current update.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// ContextCredentials reads the bearer token loaded by CredentialLoader, so
// one backend client serves every user.
func ContextCredentials() backend.CredentialProvider {
	return backend.CredentialFunc(TokenFromContext)
}

// CredentialLoader returns middleware that loads the sender's backend token
// into the context.
func CredentialLoader(store TokenStore) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			origin := telegram.OriginOf(update)
			if origin.UserID == 0 {
				next(ctx, b, update)
				return
			}

			token, err := store.Token(ctx, origin.UserID)
			switch {
			case err == nil:
				ctx = WithToken(ctx, token)
			case !errors.Is(err, domain.ErrNoCredential):
				slog.Error("load credential", "user_id", origin.UserID, "error", err)
			}
			next(ctx, b, update)
		}
	}
}
