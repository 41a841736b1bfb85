package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noema-platform/noema/internal/config"
	"github.com/noema-platform/noema/internal/consolidate"
	"github.com/noema-platform/noema/internal/database"
	"github.com/noema-platform/noema/internal/embedding"
	"github.com/noema-platform/noema/internal/events"
	"github.com/noema-platform/noema/internal/memory"
	"github.com/noema-platform/noema/internal/metrics"
	"github.com/noema-platform/noema/internal/provider/ephemeral"
	"github.com/noema-platform/noema/internal/provider/longterm"
	"github.com/noema-platform/noema/internal/provider/shortterm"
	"github.com/noema-platform/noema/internal/provider/vector"
	iredis "github.com/noema-platform/noema/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder := newEmbedder(cfg.Memory)

	var providers []memory.Provider

	// Short-term: Redis when enabled, in-process map otherwise.
	if cfg.Redis.Enabled {
		redisClient, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("connecting to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		providers = append(providers, shortterm.New(redisClient, cfg.Memory.ShortTermTTL))
	} else {
		providers = append(providers, ephemeral.New(memory.KindShortTerm))
	}

	// Semantic: embedded vector store.
	vectorStore, err := vector.New(embedder)
	if err != nil {
		slog.Error("creating vector store", "error", err)
		os.Exit(1)
	}
	providers = append(providers, vectorStore)

	// Long-term + procedural: PostgreSQL when enabled, in-process map otherwise.
	if cfg.DB.Enabled {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
		pool, err := database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		providers = append(providers, longterm.New(pool, embedder))
	} else {
		providers = append(providers, ephemeral.New(memory.KindLongTerm, memory.KindProcedural))
	}

	manager := memory.NewManager(providers,
		memory.WithDefaultAgentID(cfg.Memory.DefaultAgentID),
		memory.WithMaxResults(cfg.Memory.MaxResults),
	)

	// NATS bridge: forward every lifecycle event to JetStream.
	if cfg.NATS.Enabled {
		natsClient, err := events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		pub := events.NewPublisher(natsClient.JetStream())
		if _, err := manager.RegisterHook(events.HookOptions(), pub.Hook()); err != nil {
			slog.Error("registering NATS hook", "error", err)
			os.Exit(1)
		}
	}

	// Periodic consolidation: provider sweeps plus cluster summarization.
	if cfg.Consolidation.Interval > 0 {
		consolidator := consolidate.New(manager,
			consolidate.NewSimilarityClusterer(embedder),
			consolidate.NewCapabilitySummarizer(&consolidate.ExtractiveSummarizer{}),
		)
		go runConsolidationLoop(ctx, manager, consolidator, cfg.Consolidation)
	}

	go serveMetrics(ctx)

	slog.Info("noemad started",
		"providers", len(providers),
		"nats", cfg.NATS.Enabled,
		"consolidation_interval", cfg.Consolidation.Interval,
	)

	<-ctx.Done()
	slog.Info("shutting down")
}

func newEmbedder(cfg config.MemoryConfig) embedding.Capability {
	if cfg.EmbedderModel != "" {
		return embedding.NewOllamaEmbedder(cfg.EmbedderURL, cfg.EmbedderModel)
	}
	return embedding.NewHashEmbedder(0)
}

func runConsolidationLoop(ctx context.Context, manager *memory.Manager, c *consolidate.Consolidator, cfg config.ConsolidationConfig) {
	opts := consolidate.DefaultOptions()
	opts.MaxEntries = cfg.MaxEntries
	opts.MinClusterSize = cfg.MinClusterSize
	opts.SimilarityThreshold = cfg.SimilarityThreshold
	opts.MaxMemoryAge = cfg.MaxMemoryAge
	opts.IncludePrivate = cfg.IncludePrivate

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := manager.Consolidate(ctx); err != nil {
				slog.Warn("provider sweep failed", "error", err)
			}
			results, err := c.Consolidate(ctx, memory.Query{}, opts)
			if err != nil {
				slog.Warn("consolidation run failed", "error", err)
				continue
			}
			var ok int
			for _, r := range results {
				if r.Success {
					ok++
				}
			}
			slog.Info("consolidation run finished", "clusters", len(results), "consolidated", ok)
		}
	}
}

func serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server error", "error", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
