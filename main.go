package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/shopfront/internal/app"
	"github.com/msomdec/shopfront/internal/config"
	"github.com/msomdec/shopfront/internal/handler"
	"github.com/msomdec/shopfront/internal/service"
)

const (
	sessionPurgeInterval = time.Hour
	limiterSweepInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	sessionService := service.NewSessionService(backend.Sessions, cfg.SessionTTL, cfg.SessionTouchInterval)
	authService, err := service.NewAuthService(
		backend.Users,
		service.NewPasswordHasher(cfg.BcryptCost),
		sessionService,
		backend.Mailer,
		service.WithRevealUnknownEmail(cfg.ResetRevealUnknownEmail),
	)
	if err != nil {
		slog.Error("failed to create auth service", "error", err)
		os.Exit(1)
	}
	productService := service.NewProductService(backend.Products, backend.Files, service.NewGuard(backend.Products))
	limiter := service.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRatePerMinute)

	go limiter.Run(ctx, limiterSweepInterval)
	go purgeSessions(ctx, sessionService, sessionPurgeInterval)

	router := handler.NewRouter(handler.Services{
		Auth:     authService,
		Sessions: sessionService,
		Users:    backend.Users,
		Tokens:   service.NewTokenIssuer(cfg.SessionSecret),
		Products: productService,
		Limiter:  limiter,
		DB:       backend.DB,
	}, handler.Options{
		CookieName:     cfg.SessionCookieName,
		CookieSecure:   cfg.CookieSecure,
		BaseURL:        cfg.BaseURL,
		TrustProxy:     cfg.TrustProxy,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// purgeSessions removes expired sessions until ctx is cancelled. Stores with
// native expiry report zero.
func purgeSessions(ctx context.Context, sessions *service.SessionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				slog.Error("failed to purge sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired sessions", "count", n)
			}
		}
	}
}
