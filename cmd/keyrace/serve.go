package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/keyrace/internal/api"
	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/config"
	"github.com/verte-zerg/keyrace/internal/corpus"
	"github.com/verte-zerg/keyrace/internal/generator"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/logger"
	"github.com/verte-zerg/keyrace/internal/store"
)

var serveAddr string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the leaderboard server",
		Long: `Run the leaderboard server.

Settings are read from the environment and an optional .env file:
ADDR, DATABASE_URL (sqlite:// path or postgres:// URL), REDIS_URL,
CACHE_TTL_SECONDS, JWT_SECRET, JWT_EXPIRY_HOURS, BCRYPT_COST,
LOG_LEVEL, LOG_FORMAT and ALLOWED_ORIGINS.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides ADDR)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.LoadServer()
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("addr", cfg.Addr).
		Str("log_level", cfg.LogLevel).
		Msg("starting keyrace server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		log.Debug().Msg("closing database connection")
		_ = db.Close()
	}()
	log.Info().Str("driver", db.Driver()).Msg("database ready")

	var scores leaderboard.Store = leaderboard.NewSQLStore(db)
	if cfg.RedisURL != "" {
		rdb, err := leaderboard.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, serving leaderboard without cache")
		} else {
			defer rdb.Close()
			scores = leaderboard.NewCachedStore(scores, rdb, cfg.CacheTTL, log)
		}
	}

	c, err := corpus.Default()
	if err != nil {
		return err
	}
	gen, err := generator.New(c)
	if err != nil {
		return err
	}

	feed := leaderboard.NewFeed()
	srv := api.New(api.Options{
		Auth: auth.NewService(
			auth.NewUsers(db),
			auth.NewPasswords(cfg.BcryptCost),
			auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiry),
		),
		Leaderboard:    leaderboard.NewService(scores, feed),
		Feed:           feed,
		Texts:          gen,
		DB:             db,
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("shutdown complete")
	return nil
}
