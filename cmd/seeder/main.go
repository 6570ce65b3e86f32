// cmd/seeder/main.go
package main

import (
	"context"
	"os"

	"github.com/unclebandit/mica-backend/internal/config"
	"github.com/unclebandit/mica-backend/internal/db"
	"github.com/unclebandit/mica-backend/internal/logger"
)

func main() {
	envErr := config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(config.LoggerConfig{})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Logger)
	if envErr != nil {
		log.Warn().Msg("⚠️ No .env file found, relying on OS environment variables")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DataBase, logger.Component(log, "db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	// Campaigns before customers: customer_data references campaigns.
	seedFiles := []string{
		"db/schema.sql",
		"db/seed/campaigns.sql",
		"db/seed/customers.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to read seed file")
		}
		if err := db.ExecFile(ctx, conn, string(content)); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to execute seed file")
		}
		log.Info().Str("file", file).Msg("Seeded")
	}

	log.Info().Msg("✅ Database seeding completed successfully!")
}
