package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	visionchat "github.com/set-night/visionchat"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/config"
	"github.com/set-night/visionchat/internal/events"
	"github.com/set-night/visionchat/internal/handler"
	"github.com/set-night/visionchat/internal/middleware"
	"github.com/set-night/visionchat/internal/repository"
	"github.com/set-night/visionchat/internal/telegram"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	mode, _ := cfg.Mode()

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	if err := repository.RunMigrations(cfg.DatabaseURL, visionchat.MigrationsFS, "migrations"); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	credentials := repository.NewCredentialStore(pool)
	bindings := repository.NewBindingStore(pool)

	// Turn events
	publisher, err := events.New(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		slog.Error("failed to connect to event broker", "error", err)
		os.Exit(1)
	}

	// Every request carries the token the credential middleware loaded for
	// the sender.
	client := backend.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, middleware.ContextCredentials())

	chats := chat.NewRegistry(func(chatID int64) *chat.Orchestrator {
		return chat.New(client, chat.Options{
			Mode:            mode,
			Model:           cfg.DefaultModel,
			ResolveModel:    config.ResolveModel,
			PreviewDir:      cfg.PreviewDir,
			MaxImageBytes:   cfg.MaxImageBytes,
			MaxPromptTokens: cfg.MaxPromptTokens,
			Publisher:       publisher,
			Logger:          logger.With("telegram_chat_id", chatID),
		})
	}, config.IdleEvictAfter, logger)
	chats.StartEviction(ctx, config.EvictInterval)

	limiter := middleware.NewLimiter(cfg.RateLimitPerMinute, config.RateLimitBurst)
	limiter.StartCleanup(ctx, config.EvictInterval, config.IdleEvictAfter)

	// The admin logger needs the bot, which needs the middlewares.
	var adminLog *telegram.AdminLogger
	reporter := reporterFunc(func(err error, where string) { adminLog.LogError(err, where) })

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(reporter),
			middleware.Logging(),
			middleware.RateLimit(limiter),
			middleware.CredentialLoader(credentials),
		),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}
	adminLog = telegram.NewAdminLogger(b, cfg.AdminIDs)

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Initialize and register handlers
	h := handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Chats:       chats,
		Rooms:       client,
		Credentials: credentials,
		Bindings:    bindings,
		AdminLog:    adminLog,
	})
	h.Register()

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID, "mode", mode, "admins", cfg.AdminIDsString())
	b.Start(ctx)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	chats.Close(shutdownCtx)
	if err := publisher.Close(); err != nil {
		slog.Warn("close event publisher", "error", err)
	}
	slog.Info("bot stopped gracefully")
}

type reporterFunc func(err error, where string)

func (f reporterFunc) LogError(err error, where string) { f(err, where) }
