package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/crm-backend/internal/config"
	"github.com/hongminglow/crm-backend/internal/logger"
	"github.com/hongminglow/crm-backend/internal/server"
	"github.com/hongminglow/crm-backend/internal/storage"
	"github.com/hongminglow/crm-backend/internal/storage/postgres"
	"github.com/hongminglow/crm-backend/internal/storage/sqlite"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json", os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if envErr != nil {
		log.Debug().Msg("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	userStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init database")
	}
	defer userStore.Close()

	srv := server.New(cfg, userStore, log)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddress()).Msg("CRM backend listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.UserStore, error) {
	driver, dsn, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, err
	}
	if driver == config.DriverSQLite {
		return sqlite.NewUserStore(ctx, dsn)
	}
	return postgres.NewUserStore(ctx, dsn)
}
