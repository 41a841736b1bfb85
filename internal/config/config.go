package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	DB            DBConfig
	Redis         RedisConfig
	NATS          NATSConfig
	Memory        MemoryConfig
	Consolidation ConsolidationConfig
	Log           LogConfig
}

type DBConfig struct {
	Enabled        bool
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled bool
	URL     string
}

type MemoryConfig struct {
	// DefaultAgentID owns agent-scoped entries stored without an owner.
	DefaultAgentID string
	// MaxResults is the default query result cutoff.
	MaxResults int
	// ShortTermTTL is the Redis expiry for short-term entries that
	// carry no explicit expiry of their own.
	ShortTermTTL time.Duration
	// EmbedderModel selects the Ollama embedding model; empty selects
	// the deterministic hash embedder (offline mode).
	EmbedderModel string
	// EmbedderURL is the Ollama base URL.
	EmbedderURL string
}

type ConsolidationConfig struct {
	// Interval between consolidation runs. Zero disables the timer.
	Interval            time.Duration
	MaxEntries          int
	MinClusterSize      int
	SimilarityThreshold float64
	MaxMemoryAge        time.Duration
	IncludePrivate      bool
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		DB: DBConfig{
			Enabled:  k.Bool("db.enabled"),
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Enabled:  k.Bool("redis.enabled"),
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			Enabled: k.Bool("nats.enabled"),
			URL:     k.String("nats.url"),
		},
		Memory: MemoryConfig{
			DefaultAgentID: k.String("memory.default.agent"),
			MaxResults:     k.Int("memory.max.results"),
			EmbedderModel:  k.String("memory.embedder.model"),
			EmbedderURL:    k.String("memory.embedder.url"),
		},
		Consolidation: ConsolidationConfig{
			MaxEntries:          k.Int("consolidation.max.entries"),
			MinClusterSize:      k.Int("consolidation.min.cluster.size"),
			SimilarityThreshold: k.Float64("consolidation.similarity.threshold"),
			IncludePrivate:      k.Bool("consolidation.include.private"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "noema"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "noema"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Memory.MaxResults == 0 {
		cfg.Memory.MaxResults = 50
	}
	if cfg.Consolidation.MaxEntries == 0 {
		cfg.Consolidation.MaxEntries = 200
	}
	if cfg.Consolidation.MinClusterSize == 0 {
		cfg.Consolidation.MinClusterSize = 2
	}
	if cfg.Consolidation.SimilarityThreshold == 0 {
		cfg.Consolidation.SimilarityThreshold = 0.7
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Memory.ShortTermTTL, err = parseDuration(k.String("memory.shortterm.ttl"), "1h")
	if err != nil {
		return nil, fmt.Errorf("parsing short-term ttl: %w", err)
	}
	cfg.Consolidation.Interval, err = parseDuration(k.String("consolidation.interval"), "0s")
	if err != nil {
		return nil, fmt.Errorf("parsing consolidation interval: %w", err)
	}
	cfg.Consolidation.MaxMemoryAge, err = parseDuration(k.String("consolidation.max.memory.age"), "0s")
	if err != nil {
		return nil, fmt.Errorf("parsing max memory age: %w", err)
	}

	return cfg, nil
}

func parseDuration(s, fallback string) (time.Duration, error) {
	if s == "" {
		s = fallback
	}
	return time.ParseDuration(s)
}
