package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/api"
	"github.com/Harshitk-cp/truthstake/internal/buildconfig"
	"github.com/Harshitk-cp/truthstake/internal/config"
	"github.com/Harshitk-cp/truthstake/internal/extledger"
	"github.com/Harshitk-cp/truthstake/internal/service"
	"github.com/Harshitk-cp/truthstake/internal/store"
	"github.com/Harshitk-cp/truthstake/internal/store/memstore"
	"github.com/Harshitk-cp/truthstake/internal/verdict"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := config.Load(); err != nil {
		// The logger is not configured yet; LOG_LEVEL may live in the env file.
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	logger.Info("starting truthstake",
		zap.String("version", buildconfig.Version()),
		zap.String("commit", buildconfig.Commit()))

	ctx := context.Background()

	var stores api.Stores
	switch driver := config.StorageDriver(); driver {
	case "memory":
		logger.Warn("using in-memory storage; state is lost on restart")
		stores = api.MemoryStores(memstore.New())
	case "postgres":
		pool := connectPostgres(ctx, logger)
		defer pool.Close()
		stores = api.PostgresStores(pool)
	default:
		logger.Fatal("unknown storage driver", zap.String("driver", driver))
	}

	external, err := extledger.NewClient(config.ExternalLedger(), extledger.Config{
		RPCURL:    config.ExternalRPCURL(),
		IntentURL: config.ExternalIntentURL(),
		Decimals:  config.ExternalDecimals(),
	})
	if err != nil {
		logger.Fatal("external ledger client initialization failed",
			zap.String("provider", config.ExternalLedger()), zap.Error(err))
	}
	logger.Info("external ledger client initialized", zap.String("provider", config.ExternalLedger()))

	verdicts, err := verdict.NewProvider(config.VerdictProvider(), config.VerdictAPIKey())
	if err != nil {
		logger.Fatal("verdict provider initialization failed",
			zap.String("provider", config.VerdictProvider()), zap.Error(err))
	}
	logger.Info("verdict provider initialized", zap.String("provider", config.VerdictProvider()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := api.NewApp(stores, api.Options{
		Engine:         engineConfig(),
		External:       external,
		Verdicts:       verdicts,
		Registry:       registry,
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
		WorkerIntervals: api.WorkerIntervals{
			Reconcile:  config.ReconcileInterval(),
			Adjudicate: config.AdjudicateInterval(),
			Finalize:   config.FinalizeInterval(),
			Dispatch:   config.DispatchInterval(),
		},
	}, logger)
	if err != nil {
		logger.Fatal("invalid engine configuration", zap.Error(err))
	}

	// Start background workers
	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop workers after the listener so in-flight requests finish first.
	app.Stop()

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func connectPostgres(ctx context.Context, logger *zap.Logger) *pgxpool.Pool {
	dbURL := config.DatabaseURL()
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	if config.RunMigrations() {
		applied, err := store.Migrate(ctx, pool, config.MigrationsPath(), logger)
		if err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Int("count", applied))
	}
	return pool
}

func engineConfig() service.EngineConfig {
	cfg := service.DefaultEngineConfig()
	cfg.MinStake = config.MinStake()
	cfg.MinSupport = config.MinSupport()
	cfg.ChallengeFloor = config.ChallengeFloor()
	cfg.ChallengeMargin = config.ChallengeMargin()
	cfg.ReputationInitial = config.ReputationInitial()
	cfg.ReputationMin = config.ReputationMin()
	cfg.ReputationMax = config.ReputationMax()
	cfg.WinDelta = config.ReputationWinDelta()
	cfg.LoseDelta = config.ReputationLoseDelta()
	cfg.VotingWindow = config.VotingWindow()
	cfg.QuorumWeight = config.VoteQuorumWeight()
	cfg.VerdictPolicy = config.VerdictPolicy()
	cfg.OverrideMinShare = config.OverrideMinShare()
	cfg.OverrideMinWeight = config.OverrideMinWeight()
	cfg.SettlementPolicy = config.SettlementPolicy()
	cfg.SettlementMaxAttempts = config.SettlementMaxAttempts()
	cfg.VerifyAfter = config.VerifyAfter()
	cfg.AllowReopenVerified = config.AllowReopenVerified()
	return cfg
}
