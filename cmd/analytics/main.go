// Command analytics aggregates knowledge base search events.
//
// It consumes search events from Kafka, keeps running totals in memory
// (top queries, zero-result queries, most matched documents, latency
// percentiles, cache hit rate), snapshots them to the query-log database and
// serves them at GET /api/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port, "topic", cfg.Kafka.SearchEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	var snapshotsDone <-chan struct{}

	db, err := database.Open(cfg)
	if err != nil {
		slog.Warn("snapshot database unavailable, stats will not persist", "error", err)
	} else {
		defer db.Close()
		snapshots := snapshot.NewStore(db)
		if err := snapshots.Migrate(ctx); err != nil {
			slog.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		if latest, err := snapshots.Latest(ctx); err != nil {
			slog.Warn("failed to read last snapshot", "error", err)
		} else if latest != nil {
			slog.Info("previous snapshot found",
				"total_searches", latest.TotalSearches,
				"zero_results", latest.ZeroResultCount,
			)
		}
		snapshotsDone = snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.SearchEvents, aggregator.Handler())
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Start(ctx)
	}()
	slog.Info("analytics consumer started", "brokers", cfg.Kafka.Brokers, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker()
	checker.Register("kafka_consumer", func(ctx context.Context) health.ComponentHealth {
		select {
		case err := <-consumerDone:
			consumerDone <- err
			msg := "stopped"
			if err != nil {
				msg = err.Error()
			}
			return health.ComponentHealth{Status: health.StatusDown, Message: msg}
		default:
			stats := consumer.Stats()
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("processed %d, failed %d, lag %d", stats.Processed, stats.Failed, stats.Lag),
			}
		}
	})
	if db != nil {
		checker.RegisterOptional("snapshot_db", health.Ping(db.DB.PingContext, db.Driver()))
	}

	mux := http.NewServeMux()
	analytics.NewHandler(aggregator).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
	if db != nil {
		<-snapshotsDone
	}
	slog.Info("analytics service stopped")
}
