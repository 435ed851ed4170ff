package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/HimanhsuRaj/chat-app-backend/internal/server"
	"github.com/HimanhsuRaj/chat-app-backend/internal/store"
	"github.com/HimanhsuRaj/chat-app-backend/pkg/config"
	"github.com/HimanhsuRaj/chat-app-backend/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Logging.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	if err := store.InitSchema(ctx, db); err != nil {
		logger.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(1)
	}

	app := server.NewApp(logger, ctx, cfg, db)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
