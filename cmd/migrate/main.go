package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"consent-backend/internal/shared/config"
	"consent-backend/internal/shared/storage/db"
	"consent-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env)
	defer telemetry.Sync()
	ctx := context.Background()

	pool := db.PoolFor(db.ProfileMigrate, db.Overrides{PingTimeout: cfg.DB.PingTimeout})
	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		telemetry.Sync()
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		telemetry.Sync()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", nil)
}
