// Package main は会員サイトのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/auth"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/config"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/web"
)

func main() {
	bootLogger := logging.New(os.Stderr, "info", "text")

	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error(context.Background(), "failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.SlogLogger) error {
	in, err := setupInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer in.Close(logger)

	manager := auth.NewManager(
		in.Users,
		in.Sessions,
		auth.NewHasher(cfg.BcryptCost),
		in.Revoker(),
		logger,
	)

	router, err := web.NewRouter(web.Options{
		Auth:         manager,
		CookieStore:  auth.NewCookieStore(in.CookieSecret, cfg.SessionTTL(), cfg.GinMode == gin.ReleaseMode),
		Logger:       logger,
		AllowOrigins: cfg.AllowedOrigins(),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", server.Addr, "mode", cfg.GinMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info(context.Background(), "server stopped cleanly")
	return nil
}
