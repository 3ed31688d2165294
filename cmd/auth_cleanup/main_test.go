package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, log, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ENV", "")
	t.Setenv("JWT_ACCESS_TTL", "soon")

	cfg, log, err := loadConfig()
	assert.ErrorContains(t, err, "JWT_ACCESS_TTL")
	assert.Nil(t, cfg)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
