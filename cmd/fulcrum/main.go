package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ibn-labs/fulcrum/internal/api"
	"github.com/ibn-labs/fulcrum/internal/backend"
	"github.com/ibn-labs/fulcrum/internal/catalog"
	"github.com/ibn-labs/fulcrum/internal/config"
	"github.com/ibn-labs/fulcrum/internal/embed"
	"github.com/ibn-labs/fulcrum/internal/interpret"
	"github.com/ibn-labs/fulcrum/internal/pipeline"
	"github.com/ibn-labs/fulcrum/internal/provisioner"
	"github.com/ibn-labs/fulcrum/internal/ratelimit"
	"github.com/ibn-labs/fulcrum/internal/retrieval"
	"github.com/ibn-labs/fulcrum/internal/runstore"
	"github.com/ibn-labs/fulcrum/internal/telemetry"
	"github.com/ibn-labs/fulcrum/internal/translate"
	"github.com/ibn-labs/fulcrum/internal/validate"
	"github.com/ibn-labs/fulcrum/internal/validate/policy"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	// Bootstrap logger; replaced once config is loaded.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()
	slog.SetDefault(buildLogger(cfg.Telemetry))

	// PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		slog.Warn("database not reachable (run lookup and catalog warm-up disabled)", "error", err)
	} else {
		slog.Info("database connected")
	}

	// Redis (optional; token cache and rate limiting degrade without it)
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Warn("redis not reachable (token cache and rate limiting degraded)", "error", err)
			rdb = nil
		} else {
			slog.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	// Catalog index, warmed from the store.
	index := catalog.NewIndex()
	catalogStore := catalog.NewStore(dbPool)
	warmIndex(context.Background(), catalogStore, index)

	// Pipeline stages
	interpreter := interpret.NewLLMInterpreter(func() config.InterpreterConfig {
		return loader.Config().Interpreter
	})
	embedder := embed.NewHTTPEmbedder(func() config.EmbeddingConfig {
		return loader.Config().Embedding
	})
	engine := retrieval.NewEngine(embedder, index)
	translator := translate.New("fulcrum")

	policyEval := policy.NewEvaluator(func() config.PolicyConfig {
		return loader.Config().Policy
	})
	if cfg.Policy.Enabled {
		if err := policyEval.Load(); err != nil {
			slog.Error("failed to load order policies", "error", err)
			os.Exit(1)
		}
		slog.Info("order policies loaded", "path", cfg.Policy.BundlePath)
	}
	validator := validate.New(policyEval)

	client := provisioner.NewClient(func() config.ProvisionerConfig {
		return loader.Config().Provisioner
	}, rdb)

	health := backend.NewHealthTracker(cfg.Pipeline.FailureThreshold, cfg.Pipeline.RecoveryProbeInterval)

	orchestrator := pipeline.NewOrchestrator(
		interpreter, engine, translator, validator, client,
		func() pipeline.Options {
			c := loader.Config()
			return pipeline.Options{
				TopK:       c.Retrieval.TopK,
				MinScore:   c.Retrieval.MinScore,
				MaxRetries: c.Pipeline.MaxRetries,
			}
		},
		health,
		metrics,
	)

	runs := runstore.NewStore(dbPool)
	handler := api.NewHandler(orchestrator, runs)
	limiter := ratelimit.NewLimiter(rdb)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/fulcrum/v1/health", api.Health(version))

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, func() ratelimit.Limits {
			c := loader.Config().RateLimit
			return ratelimit.Limits{Enabled: c.Enabled, Limit: c.Limit, Window: c.Window}
		}, metrics))
		r.Post("/v1/requests", handler.SubmitRequest)
		r.Get("/v1/requests/{id}", handler.GetRequest)
	})

	// Metrics on a separate listener so the scrape endpoint is never
	// rate limited or exposed with the API.
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("metrics server starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("fulcrum starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("fulcrum stopped")
}

// warmIndex seeds the in-memory search index from persisted catalog entries.
// An empty or unreachable store leaves the index empty; requests then end
// held rather than failing.
func warmIndex(ctx context.Context, store *catalog.Store, index *catalog.Index) {
	entries, err := store.LoadAll(ctx)
	if err != nil {
		slog.Warn("catalog warm-up failed", "error", err)
		return
	}
	if len(entries) == 0 {
		slog.Warn("catalog store is empty; run the ingest command to populate it")
		return
	}
	if err := index.ReplaceAll(entries); err != nil {
		slog.Error("catalog index rebuild failed", "error", err)
		return
	}
	slog.Info("catalog index warmed", "entries", index.Len())
}

func buildLogger(cfg config.TelemetryConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
