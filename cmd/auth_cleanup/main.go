package main

import (
	"context"
	"time"

	"accessgate/internal/config"
	"accessgate/internal/database"
	"accessgate/internal/pkg/logger"
	"accessgate/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const revokedRetention = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, log, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	now := time.Now().UTC()

	tokens, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx, now, now.Add(-revokedRetention))
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup refresh_tokens failed")
	}

	// Unlocked entries whose window closed can no longer contribute to a lock.
	entries, err := repository.NewRateLimitRepository(db).DeleteStale(ctx, now, now.Add(-cfg.RateLimitWindow))
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup rate_limit_entries failed")
	}

	log.Info().Int64("refresh_tokens", tokens).Int64("rate_limit_entries", entries).Msg("auth cleanup completed")
}

// loadConfig reads the environment and builds the logger it asks for. On
// error the returned logger uses defaults so the failure can still be logged.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, logger.New("info", false), err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogPretty), nil
}
