package main

import (
	"context"
	"os"
	"time"

	"accessgate/internal/config"
	"accessgate/internal/database"
	"accessgate/internal/domain"
	"accessgate/internal/modules/auth"
	"accessgate/internal/pkg/logger"
	"accessgate/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const defaultSeedPassword = "demo-password-123"

func main() {
	_ = godotenv.Load()

	cfg, log, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.IsProdLike() {
		log.Fatal().Str("env", cfg.AppEnv).Msg("refusing to seed demo accounts")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = defaultSeedPassword
	}

	accounts := repository.NewAccountRepository(db)
	verifier, err := auth.NewCredentialVerifier(accounts, cfg.BcryptCost, cfg.HashTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("verifier init failed")
	}
	hash, err := verifier.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seeds := []domain.Account{
		{Email: "admin@accessgate.local", Role: domain.RoleAdmin, Verified: true},
		{Email: "demo@accessgate.local", Role: domain.RoleCustomer, Verified: true},
		{Email: "pending@accessgate.local", Role: domain.RoleCustomer, Verified: false},
	}
	for i := range seeds {
		a := &seeds[i]
		a.PasswordHash = hash
		if err := accounts.Upsert(ctx, a); err != nil {
			log.Fatal().Err(err).Str("email", a.Email).Msg("seed account failed")
		}
		log.Info().Int64("id", a.ID).Str("email", a.Email).Bool("verified", a.Verified).Str("role", string(a.Role)).Msg("seeded account")
	}
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
