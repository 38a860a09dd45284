package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/api"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/config"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/learning"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/metrics"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/pipeline"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/scheduler"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/store"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "memoryd",
		Short:        "Tiered chat memory server",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP memory server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	var days int
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audited interactions older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd.Context(), days)
		},
	}
	purgeCmd.Flags().IntVar(&days, "days", 0, "retention in days (defaults to INTERACTION_RETENTION_DAYS)")

	rootCmd.AddCommand(serveCmd, purgeCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func runServe(ctx context.Context) error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		newLogger("info").Error("failed to load config", "error", err)
		return err
	}
	logger := newLogger(cfg.LogLevel)

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer db.Close()
	interactions := store.NewInteractionStore(db)

	// Tiers
	embedder := newEmbedder(ctx, cfg, db, logger)
	short, closeShort, err := newShortTerm(cfg)
	if err != nil {
		logger.Error("failed to create short-term tier", "error", err)
		return err
	}
	defer closeShort()
	long, err := newLongTerm(ctx, cfg, embedder, logger)
	if err != nil {
		logger.Error("failed to create long-term tier", "error", err)
		return err
	}

	// Memory engine and learning
	m := metrics.New()
	engine := memory.NewEngine(short, long, memory.Config{
		ShortTermTTL:       cfg.ShortTermTTL,
		PromotionAccessMin: cfg.PromotionAccessMin,
		StoreTimeout:       cfg.RequestTimeout,
		DefaultLimit:       cfg.MemoryLimit,
	}, m, logger)
	processor := learning.NewProcessor(engine, interactions, m, logger)

	var dispatcher *learning.Dispatcher
	var async pipeline.Submitter
	if cfg.AsyncLearning {
		dispatcher = learning.NewDispatcher(cfg.LearningWorkers, cfg.LearningQueueSize, cfg.RequestTimeout, m, logger)
		async = dispatcher
	}

	filter := pipeline.NewFilter(newPipelineMemory(cfg, engine, processor), pipeline.Config{
		EnableRetrieval: cfg.EnableRetrieval,
		EnableLearning:  cfg.EnableLearning,
		MemoryLimit:     cfg.MemoryLimit,
		Threshold:       cfg.MemoryThreshold,
		MaxMemoryLength: cfg.MaxMemoryLength,
		Timeout:         cfg.RequestTimeout,
	}, async, logger)

	// Retention
	sched := scheduler.New(logger)
	if retention := cfg.Retention(); retention > 0 {
		if err := sched.AddPurge(cfg.PurgeSchedule, interactions, retention, time.Minute); err != nil {
			logger.Error("failed to schedule purge", "error", err)
			return err
		}
		sched.Start()
		logger.Info("interaction purge scheduled", "schedule", cfg.PurgeSchedule, "retention_days", cfg.InteractionRetentionDays)
	}

	// Router
	router := api.NewRouter(engine, processor, filter, db, m, cfg.MemoryThreshold, logger)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("memory server starting",
			"addr", addr,
			"short_term", cfg.ShortTermBackend,
			"long_term", cfg.LongTermBackend,
			"embedding", cfg.EmbeddingBackend,
			"pipeline_memory", cfg.PipelineMemory,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sched.Stop()
	if dispatcher != nil {
		dispatcher.Close()
	}

	logger.Info("server stopped")
	return nil
}

func runPurge(ctx context.Context, days int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	retention := cfg.Retention()
	if days > 0 {
		retention = time.Duration(days) * 24 * time.Hour
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer db.Close()

	n, err := scheduler.Purge(ctx, store.NewInteractionStore(db), retention, time.Now())
	if err != nil {
		logger.Error("purge failed", "error", err)
		return err
	}
	logger.Info("interaction purge", "deleted", n, "retention", retention.String())
	return nil
}
