package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for problems that would break a running
// daemon. It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.DB.Enabled && c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required when DB_ENABLED is set")
	}

	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "NATS_URL is required when NATS_ENABLED is set")
	}

	if c.Memory.MaxResults < 1 {
		errs = append(errs, fmt.Sprintf("MEMORY_MAX_RESULTS must be positive, got %d", c.Memory.MaxResults))
	}

	if t := c.Consolidation.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Sprintf("CONSOLIDATION_SIMILARITY_THRESHOLD must be in [0,1], got %g", t))
	}
	if c.Consolidation.MinClusterSize < 1 {
		errs = append(errs, fmt.Sprintf("CONSOLIDATION_MIN_CLUSTER_SIZE must be positive, got %d", c.Consolidation.MinClusterSize))
	}
	if c.Consolidation.Interval < 0 {
		errs = append(errs, "CONSOLIDATION_INTERVAL must not be negative")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
