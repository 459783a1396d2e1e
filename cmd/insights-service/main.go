package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"customer-insights/internal/api"
	"customer-insights/internal/common/camunda"
	"customer-insights/internal/common/config"
	"customer-insights/internal/common/database"
	commonerrors "customer-insights/internal/common/errors"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/observability"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/insights/fallback"
	"customer-insights/internal/search"
	"customer-insights/internal/session"
	"customer-insights/internal/upstream"
	ask "customer-insights/internal/workers/insights/ask-customer-insights"
	docs "customer-insights/internal/workers/insights/search-customer-documents"
	"customer-insights/pkg/registry"

	"go.uber.org/zap"
)

const serviceName = "customer-insights"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting customer insights service",
		zap.String("environment", cfg.App.Environment),
		zap.String("analyticsMode", cfg.APIs.Analytics.Mode),
	)

	obs := observability.New(serviceName)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(serviceName, cfg.Tracing.JaegerEndpoint, cfg.Tracing.Enabled)
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()
	checks := map[string]database.Pinger{}

	// --- Analytics backend ---
	var (
		backend dispatch.Upstream
		reports api.ReportRunner
	)
	switch cfg.APIs.Analytics.Mode {
	case config.AnalyticsModeHTTP:
		backend = upstream.NewHTTPClient(cfg.APIs.Analytics.BaseURL, cfg.APIs.Analytics.APIKey,
			config.GetDuration(cfg.APIs.Analytics.Timeout), log)
	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", connectionFields(err)...)
		}
		defer pg.Close()
		checks["postgres"] = pg
		if missing, err := pg.MissingFunctions(ctx, upstream.CortexFunctions...); err != nil {
			zapLog.Warn("could not verify analytics functions", zap.Error(err))
		} else if len(missing) > 0 {
			zapLog.Warn("analytics functions missing, affected questions will use the fallback",
				zap.Strings("missing", missing))
		}
		cortex := upstream.NewCortexClient(pg, log)
		backend = cortex
		reports = upstream.NewReportRunner(cortex, config.GetDuration(cfg.APIs.Analytics.Timeout), log)
	}
	zapLog.Info("Analytics backend configured")

	// --- Redis: response cache and conversation history ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", connectionFields(err)...)
	}
	defer rdb.Close()
	checks["redis"] = rdb
	zapLog.Info("Redis connected successfully")

	if cfg.Cache.Enabled {
		backend = upstream.NewCachedUpstream(backend, rdb.Client, time.Duration(cfg.Cache.TTL)*time.Second, log)
	}

	history := session.NewRedisStore(rdb.Client,
		time.Duration(cfg.Session.TTL)*time.Second, cfg.Session.MaxMessages, log)

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", connectionFields(err)...)
	}
	checks["elasticsearch"] = esClient
	checks["search-index"] = esClient.IndexPinger(cfg.Search.Index)
	zapLog.Info("Elasticsearch connected successfully")

	searcher := search.NewSearcher(esClient.Client, search.Config{
		Index:      cfg.Search.Index,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    config.GetDuration(cfg.Search.Timeout),
	}, log)

	// --- Dispatcher and job handlers ---
	dispatcher := dispatch.NewDispatcher(backend, fallback.NewKnowledgeBase(),
		dispatch.Config{Timeout: config.GetDuration(cfg.APIs.Analytics.Timeout)}, log,
		dispatch.WithTracer(tracing.Tracer("dispatch")),
		dispatch.WithObservability(obs),
	)

	var validator *registry.Validator
	if reg, err := registry.LoadRegistry(cfg.Registry.Path); err != nil {
		zapLog.Warn("activity registry not loaded, job inputs will not be schema-validated",
			zap.String("path", cfg.Registry.Path), zap.Error(err))
	} else {
		validator = registry.NewValidator(reg)
	}

	askCfg := config.GetWorkerConfig(cfg, ask.TaskType)
	askHandler := ask.NewHandler(ask.NewConfig(askCfg), dispatcher, history, validator, log)

	searchCfg := config.GetWorkerConfig(cfg, docs.TaskType)
	searchHandler := docs.NewHandler(docs.NewConfig(searchCfg, cfg.Search.Index), searcher, validator, log)

	// --- Zeebe workers ---
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = pingerFunc(zeebe.HealthCheck)
		zapLog.Info("Zeebe client connected successfully")

		workers = append(workers,
			camunda.NewWorker(zeebe.GetClient(), ask.TaskType, askCfg, askHandler, obs, log),
			camunda.NewWorker(zeebe.GetClient(), docs.TaskType, searchCfg, searchHandler, obs, log),
		)
	} else {
		zapLog.Info("Camunda disabled, serving HTTP API only")
	}

	// --- HTTP server ---
	server := api.NewServer(api.Dependencies{
		Asker:          askHandler,
		Searcher:       searchHandler,
		Reports:        reports,
		History:        history,
		Checks:         checks,
		RequestTimeout: config.GetDuration(askCfg.Timeout),
		Logger:         log,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Customer insights service stopped gracefully")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// connectionFields logs the error code carried by a failed dependency check.
func connectionFields(err error) []zap.Field {
	stdErr := commonerrors.Normalize(err)
	return []zap.Field{
		zap.String("errorCode", string(stdErr.Code)),
		zap.String("category", commonerrors.GetErrorCategory(stdErr.Code)),
		zap.Error(err),
	}
}
