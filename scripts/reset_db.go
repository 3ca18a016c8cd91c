package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/logger"
	"github.com/suivoice/atm/internal/state"
)

// Development helper: drops and recreates the offline-intent and decision
// archive tables. Everything durable is lost.
func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel, "console")
	log.Info().Msg("Starting database reset script...")

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on OS environment variables")
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	store, err := state.Open(cfg.Database, *logger.Get())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	ctx := context.Background()
	log.Info().Msg("Connected. Dropping and recreating schema...")
	if err := store.ResetSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset schema")
	}
	log.Info().Msg("Database reset complete")
}
