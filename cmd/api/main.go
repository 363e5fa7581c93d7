package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studentportal/internal/api"
	"studentportal/internal/audit"
	"studentportal/internal/auth"
	"studentportal/internal/config"
	"studentportal/internal/gateway"
	"studentportal/internal/httpmiddleware"
	"studentportal/internal/profile"
	"studentportal/internal/queue"
	"studentportal/internal/session"
	"studentportal/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := store.NewRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		logger.Warn("redis not reachable at startup", "addr", cfg.RedisAddr)
	}

	var events queue.Publisher
	if cfg.AuditEnabled {
		if cfg.QueueBackend == "memory" {
			mq := queue.NewInMemory(64)
			go drainAudit(ctx, logger, mq)
			events = mq
		} else {
			events = queue.NewRedisQueue(rdb.Client, cfg.QueueKey)
		}
	}

	gw := gateway.New(cfg.StudentAPIURL, cfg.StudentTimeout)
	cache := session.NewRedisCache(rdb.Client, "", cfg.SessionTTL)
	registry := profile.NewRegistry(cfg.NameSlots, cfg.ErrorTimeout)
	defer registry.Close()

	svc := profile.NewService(gw, cache, profile.Options{
		Identifier:      cfg.Identifier,
		AllowPhotoReuse: cfg.AllowPhotoReuse,
		Events:          events,
		Logger:          logger,
	})
	handler := api.New(api.Deps{
		Students:   gw,
		Submitter:  svc,
		Cache:      cache,
		Registry:   registry,
		Signer:     auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.SessionTTL),
		Attempts:   auth.NewAttempts(rdb.Client, cfg.LoginMaxTries, cfg.LoginLockoutTTL),
		Identifier: cfg.Identifier,
		Logger:     logger,
		Checks: map[string]api.HealthCheck{
			"redis":       rdb.Healthy,
			"student_api": func(ctx context.Context) bool { return gw.Health(ctx) == nil },
		},
	})

	limiter := httpmiddleware.NewIPLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(limiter.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.Register(r)

	go sweep(ctx, logger, registry, limiter, cfg.WorkspaceIdle)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}

// drainAudit consumes in-process submission events. Without the worker the
// audit trail only reaches the log.
func drainAudit(ctx context.Context, logger *slog.Logger, q queue.Queue) {
	msgs, err := q.Consume(ctx)
	if err != nil {
		logger.Error("audit drain failed to start", "error", err)
		return
	}
	for msg := range msgs {
		var evt audit.Event
		if err := msg.Decode(&evt); err != nil {
			logger.Warn("undecodable submission event", "error", err)
			continue
		}
		logger.Info("submission recorded", "event", evt.ID, "national_id", evt.NationalID)
	}
}

// sweep closes idle workspaces and forgets idle rate-limit buckets.
func sweep(ctx context.Context, logger *slog.Logger, registry *profile.Registry, limiter *httpmiddleware.IPLimiter, idle time.Duration) {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(idle); n > 0 {
				logger.Debug("closed idle workspaces", "count", n)
			}
			limiter.Prune(idle)
		}
	}
}
