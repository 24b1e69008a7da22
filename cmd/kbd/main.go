// Command kbd serves the compliance knowledge base query API.
//
// It loads the resource corpus once at start, then answers searches over
// HTTP. Redis, Kafka and the query log are optional; when one is unavailable
// the server keeps running without it.
//
// Usage:
//
//	go run ./cmd/kbd [-config configs/development.yaml]
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
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/pagetext"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/querylog"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search/cache"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search/handler"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/termgraph"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/redis"
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
	slog.Info("starting knowledge base", "port", cfg.Server.Port, "resources", cfg.Resources.Dir)

	store, err := resource.LoadDir(cfg.Resources.Dir)
	if err != nil {
		slog.Error("failed to load resources", "error", err)
		os.Exit(1)
	}
	for _, problem := range store.CheckReferences() {
		slog.Warn("dangling term reference", "error", problem)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	for kind, n := range store.CountByKind() {
		m.ResourcesLoaded.WithLabelValues(string(kind)).Set(float64(n))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	var pages termgraph.PageTextProvider
	var textProvider *pagetext.Provider
	if cfg.PageText.Enabled {
		opts := []pagetext.Option{pagetext.WithMetrics(m)}
		if redisClient != nil {
			opts = append(opts, pagetext.WithCache(pagetext.NewRedisCache(redisClient, cfg.PageText.CacheTTL)))
		}
		textProvider = pagetext.NewProvider(cfg.PageText, opts...)
		pages = textProvider
		slog.Info("page text enabled", "rate_per_second", cfg.PageText.RatePerSecond)
	}

	searcher := search.New(store, pages, pagetext.Links{})
	opts := []handler.Option{
		handler.WithMetrics(m),
		handler.WithTracing(cfg.Tracing.Enabled),
	}

	if redisClient != nil {
		queryCache := cache.New(redisClient, store.Version(), cfg.Redis.CacheTTL, m)
		opts = append(opts, handler.WithCache(queryCache))
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var db *database.Client
	var recorder *querylog.Recorder
	if cfg.QueryLog.Enabled {
		db, err = database.Open(cfg)
		if err != nil {
			slog.Error("failed to open query log database", "driver", cfg.QueryLog.Driver, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		logStore := querylog.NewStore(db)
		version, err := logStore.Migrate(ctx)
		if err != nil {
			slog.Error("failed to migrate query log", "error", err)
			os.Exit(1)
		}
		slog.Info("query log ready", "driver", db.Driver(), "schema_version", version)

		recorder = querylog.NewRecorder(logStore, m, cfg.QueryLog.BatchSize, cfg.QueryLog.FlushInterval)
		recorder.Start(ctx)
		defer recorder.Close()
		opts = append(opts, handler.WithQueryLog(recorder, logStore))
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Kafka.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, handler.WithEvents(collector))
		slog.Info("analytics events enabled", "topic", cfg.Kafka.SearchEvents)
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		status := health.StatusUp
		if store.Len() == 0 {
			status = health.StatusDegraded
		}
		return health.ComponentHealth{
			Status:  status,
			Message: fmt.Sprintf("%d resources, version %s", store.Len(), store.Version()),
		}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", health.Ping(redisClient.Ping, cfg.Redis.Addr))
	} else {
		checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDown, Message: "not configured"}
		})
	}
	if db != nil {
		checker.RegisterOptional("query_log", health.Ping(db.DB.PingContext, db.Driver()))
	}
	if textProvider != nil {
		checker.RegisterOptional("page_text", func(ctx context.Context) health.ComponentHealth {
			if open := textProvider.OpenBreakers(); len(open) > 0 {
				return health.ComponentHealth{Status: health.StatusDown, Message: "open: " + strings.Join(open, ", ")}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := handler.New(searcher, store, opts...)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer limiter.Stop()
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("knowledge base listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
	slog.Info("knowledge base stopped")
}
