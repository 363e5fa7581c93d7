package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studentportal/internal/audit"
	"studentportal/internal/config"
	"studentportal/internal/queue"
	"studentportal/internal/store"
)

// reportResubmission warns when a student has submitted more than once, which
// only happens after the backend re-opened the profile for editing.
func reportResubmission(ctx context.Context, logger *slog.Logger, repo *audit.Repository, evt audit.Event) {
	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	history, err := repo.ListByStudent(listCtx, evt.NationalID, 5)
	if err != nil {
		logger.Warn("audit history lookup failed", "national_id", evt.NationalID, "error", err)
		return
	}
	if len(history) > 1 {
		logger.Warn("student resubmitted profile",
			"national_id", evt.NationalID,
			"submissions", len(history),
			"previous_name", history[1].EnglishName,
		)
	}
}

// Worker consumes submission events and writes the audit trail.
func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := audit.NewRepository(db.Client)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("audit schema setup failed", "error", err)
		os.Exit(1)
	}

	rdb := store.NewRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	q := queue.NewRedisQueue(rdb.Client, cfg.QueueKey)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Error("queue consume init failed", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for messages", "queue", cfg.QueueKey)
	for msg := range messages {
		if msg.Type != audit.MessageType {
			logger.Debug("skipping message", "type", msg.Type)
			continue
		}
		var evt audit.Event
		if err := msg.Decode(&evt); err != nil {
			logger.Warn("undecodable submission event", "error", err)
			continue
		}
		insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := repo.Insert(insertCtx, evt)
		cancel()
		if err != nil {
			logger.Error("audit insert failed", "event", evt.ID, "error", err)
			continue
		}
		logger.Info("submission recorded", "event", evt.ID, "national_id", evt.NationalID)
		reportResubmission(ctx, logger, repo, evt)
	}
	logger.Info("worker stopped")
}
