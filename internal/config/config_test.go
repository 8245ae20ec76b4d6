package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_JWT_SECRET", "s3cret")
	t.Setenv("APP_STORAGE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Kolkata", cfg.AppTimezone)
	assert.Equal(t, int64(5), cfg.RewardMoodPoints)
	assert.Equal(t, int64(10), cfg.RewardJournalPoints)
	assert.Equal(t, 25, cfg.PlantWaterAmount)
	assert.Equal(t, 10, cfg.PlantDecayAmount)
	assert.Equal(t, 24*time.Hour, cfg.NeglectThreshold())
	assert.True(t, cfg.PlantRewardFullWatering)
	assert.Equal(t, "5 0 * * *", cfg.CronStreakReset)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTPCORSOrigins)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("HTTP_JWT_SECRET", "")
	t.Setenv("APP_STORAGE", "memory")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown storage", func(c *Config) { c.AppStorage = "mongo" }},
		{"zero breathing divisor", func(c *Config) { c.RewardBreathingSecPerPt = 0 }},
		{"zero decay", func(c *Config) { c.PlantDecayAmount = 0 }},
		{"telegram without chat", func(c *Config) { c.TelegramBotToken = "token" }},
		{"bad pool bounds", func(c *Config) { c.AppStorage = StoragePostgres; c.DBMinConns = 50 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := Default()
	cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode = "u", "p", "db", 5433, "w", "require"

	assert.Equal(t, "postgres://u:p@db:5433/w?sslmode=require", cfg.DatabaseDSN())
}
