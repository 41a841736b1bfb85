package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DB:    DBConfig{Port: 5432},
		Redis: RedisConfig{Port: 6379},
		NATS:  NATSConfig{URL: "nats://localhost:4222"},
		Memory: MemoryConfig{
			MaxResults: 50,
		},
		Consolidation: ConsolidationConfig{
			MinClusterSize:      2,
			SimilarityThreshold: 0.7,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Port = 0
	cfg.Redis.Port = 70000
	cfg.Memory.MaxResults = 0
	cfg.Consolidation.SimilarityThreshold = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
	assert.Contains(t, err.Error(), "REDIS_PORT")
	assert.Contains(t, err.Error(), "MEMORY_MAX_RESULTS")
	assert.Contains(t, err.Error(), "CONSOLIDATION_SIMILARITY_THRESHOLD")
}

func TestValidate_DBPasswordRequiredWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")

	cfg.DB.Password = "secret"
	require.NoError(t, cfg.Validate())
}

func TestValidate_NATSURLRequiredWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.URL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NATS_URL")
}
