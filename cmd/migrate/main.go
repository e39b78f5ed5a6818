package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/zentrodesk/zentro-desk/internal/config"
	"github.com/zentrodesk/zentro-desk/internal/db"
	"github.com/zentrodesk/zentro-desk/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "up applies all migrations, down rolls back one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	conn, err := db.Open(context.Background(), cfg.Postgres.DSN(), log)
	if err != nil {
		log.Error("database unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(conn, *direction); err != nil {
		log.Error("migration failed", slog.String("direction", *direction), slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("migrations applied", slog.String("direction", *direction))
}
