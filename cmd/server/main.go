package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/internal/server/api"
	"courier/internal/server/bot"
	"courier/internal/server/cleanup"
	"courier/internal/server/config"
	"courier/internal/server/database"
	"courier/internal/server/service"
	"courier/internal/server/session"
	"courier/internal/server/telegram"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"channel", cfg.PublicChannelName,
		"link_ttl", cfg.LinkTTL,
		"auto_delete", cfg.AutoDeleteDelay,
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize repository and services
	repo := database.NewRepository(db)
	registry := service.NewRegistry(repo, cfg.LinkTTL)
	batches := service.NewAggregator(repo, registry, cfg.BatchDeleteAfterDelivery)
	gate := service.NewGate(repo)

	// Platform client and update dispatcher. An evicted session may still
	// hold a re-hosted file from an abandoned secure flow; discard the
	// channel copy so it does not linger unreferenced.
	client := telegram.NewClient(cfg.BotToken, cfg.TelegramAPIBase)
	sessions := session.NewManager(cfg.SessionIdle, func(s *session.Session) {
		if s.Pending == nil {
			return
		}
		evictCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.DeleteMessage(evictCtx, cfg.PublicChannelID, s.Pending.ChannelMessageID); err != nil {
			slog.Warn("failed to discard re-hosted copy of evicted session",
				"channel_message", s.Pending.ChannelMessageID, "error", err)
		}
	})
	dispatcher := bot.NewDispatcher(cfg, client, registry, batches, gate, sessions, repo)

	if cfg.WebhookURL != "" {
		if err := client.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			slog.Error("failed to register webhook", "error", err)
			os.Exit(1)
		}
		slog.Info("webhook registered", "url", cfg.WebhookURL)
	}

	// Expiry sweep only runs under the time-limited policy; with permanent
	// links there is nothing to prune.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var sweep *cleanup.Service
	if cfg.LinkTTL > 0 {
		sweep = cleanup.NewService(repo, cfg.LinkTTL, cfg.CleanupInterval)
		sweep.Start(cleanupCtx)
	}

	// Setup HTTP router
	handler := api.NewHandler(dispatcher, registry, db, cfg.WebhookSecret)
	e := api.SetupRouter(handler)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop the expiry sweep
	cleanupCancel()
	if sweep != nil {
		sweep.Wait()
	}

	slog.Info("server exited cleanly")
}
