package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/visionchat/internal/telegram"
)

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a per-chat token bucket refilled at perMinute tokens a minute,
// holding at most perMinute+burst tokens.
type Limiter struct {
	mu        sync.Mutex
	perMinute float64
	capacity  float64
	buckets   map[int64]*tokenBucket
	now       func() time.Time
}

func NewLimiter(perMinute, burst int) *Limiter {
	return &Limiter{
		perMinute: float64(perMinute),
		capacity:  float64(perMinute + burst),
		buckets:   make(map[int64]*tokenBucket),
		now:       time.Now,
	}
}

// Allow consumes a token for chatID if one is available. A limiter with a
// non-positive rate allows everything.
func (l *Limiter) Allow(chatID int64) bool {
	if l.perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tb, ok := l.buckets[chatID]
	if !ok {
		tb = &tokenBucket{tokens: l.capacity, lastRefill: now}
		l.buckets[chatID] = tb
	}

	elapsed := now.Sub(tb.lastRefill).Minutes()
	tb.tokens = min(l.capacity, tb.tokens+elapsed*l.perMinute)
	tb.lastRefill = now

	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// Cleanup drops buckets untouched for at least maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, tb := range l.buckets {
		if now.Sub(tb.lastRefill) >= maxAge {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (l *Limiter) StartCleanup(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup(maxAge)
			}
		}
	}()
}

// RateLimit returns middleware that drops messages from chats over their
// rate. Callback queries are not limited.
func RateLimit(l *Limiter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !l.Allow(chatID) {
				slog.Debug("rate limited", "chat_id", chatID)
				telegram.SendText(ctx, b, chatID, "⏳ Too many requests. Please wait a moment.", nil)
				return
			}
			next(ctx, b, update)
		}
	}
}
