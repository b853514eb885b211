package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/set-night/visionchat/internal/backend"
	"github.com/set-night/visionchat/internal/chat"
	"github.com/set-night/visionchat/internal/config"
	"github.com/set-night/visionchat/internal/domain"
	"github.com/set-night/visionchat/internal/events"
	"github.com/set-night/visionchat/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "visionchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadTUI()
	if err != nil {
		return err
	}
	mode, _ := cfg.Mode()

	// The terminal belongs to the renderer, so logs go to a file.
	logOut := io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, err := events.New(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return fmt.Errorf("connect event broker: %w", err)
	}
	defer publisher.Close()

	client := backend.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, backend.StaticToken(cfg.APIToken))
	orch := chat.New(client, chat.Options{
		Mode:            mode,
		Model:           cfg.DefaultModel,
		ResolveModel:    config.ResolveModel,
		PreviewDir:      cfg.PreviewDir,
		MaxImageBytes:   cfg.MaxImageBytes,
		MaxPromptTokens: cfg.MaxPromptTokens,
		Publisher:       publisher,
		Logger:          logger,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		orch.Close(shutdownCtx)
	}()

	if cfg.RoomID != "" && mode == domain.ModeRoom {
		// A failed load is shown in the timeline.
		if err := orch.SwitchChat(ctx, domain.ChatIdentity(cfg.RoomID)); err != nil {
			slog.Warn("open initial room", "room_id", cfg.RoomID, "error", err)
		}
	}

	logger.Info("terminal client started", "mode", mode, "api", cfg.APIBaseURL)
	p := tea.NewProgram(tui.New(ctx, orch, client), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}
