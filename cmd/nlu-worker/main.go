// cmd/nlu-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nlu-engine/internal/common/camunda"
	"nlu-engine/internal/common/config"
	"nlu-engine/internal/common/database"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/common/metrics"
	"nlu-engine/internal/common/observability"
	"nlu-engine/internal/nlu/cache"
	"nlu-engine/internal/nlu/engine"
	"nlu-engine/internal/nlu/history"
	"nlu-engine/internal/nlu/modelstore"
	es "nlu-engine/internal/workers/nlu/extract-slots"
	pu "nlu-engine/internal/workers/nlu/parse-utterance"
	"nlu-engine/pkg/registry"
)

type jobHandler interface {
	Register() error
	Close(ctx context.Context)
	HealthCheck(ctx context.Context) error
	GetTaskType() string
	IsEnabled() bool
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
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
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console", "stderr")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting NLU worker",
		zap.String("version", cfg.App.Version),
		zap.String("engineVersion", modelstore.GetModelVersion()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.App.Name, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	// --- Model and engine ---
	model, err := loadModel(cfg.Engine, zapLog)
	if err != nil {
		zapLog.Fatal("model load failed", zap.Error(err))
	}

	eng, err := newEngine(cfg.Engine, model, log, obs)
	if err != nil {
		zapLog.Fatal("engine init failed", zap.Error(err))
	}

	deps := pu.ServiceDependencies{Engine: eng}

	// --- Redis parse cache ---
	if cfg.Cache.Enabled {
		rc := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(ctx, func() error {
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()

		deps.Cache = cache.New(rc.Client, eng, model.Fingerprint(), cfg.Cache.KeyPrefix,
			config.GetDuration(cfg.Cache.TTL), log)
		zapLog.Info("Parse cache enabled", zap.Int("ttlMs", cfg.Cache.TTL))
	}

	// --- PostgreSQL parse history ---
	if cfg.History.Enabled {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("postgres open failed", zap.Error(err))
		}
		err = retryWithBackoff(ctx, func() error {
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		recorder, err := history.New(pg.DB, cfg.History.Table, model.Fingerprint(), log)
		if err != nil {
			zapLog.Fatal("history init failed", zap.Error(err))
		}
		if err := recorder.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("history schema failed", zap.Error(err))
		}
		deps.History = recorder
		zapLog.Info("Parse history enabled", zap.String("table", cfg.History.Table))
	}

	// --- Zeebe client ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(ctx, func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer camundaClient.Close()

	// --- Workers ---
	parseHandler, err := pu.NewHandler(pu.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       camundaClient,
		Observability: obs,
		Dependencies:  deps,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("parse worker init failed", zap.Error(err))
	}
	slotsHandler, err := es.NewHandler(es.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       camundaClient,
		Observability: obs,
		Engine:        eng,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("slots worker init failed", zap.Error(err))
	}
	handlers := []jobHandler{parseHandler, slotsHandler}

	checkRegistry(cfg.App.RegistryPath, handlers, zapLog)

	for _, h := range handlers {
		if err := h.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.String("taskType", h.GetTaskType()), zap.Error(err))
		}
	}

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           newMux(handlers),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, stopping workers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, h := range handlers {
			h.Close(shutdownCtx)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("NLU worker stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("NLU worker stopped")
}

func loadModel(cfg config.EngineConfig, log *zap.Logger) (*modelstore.Model, error) {
	start := time.Now()
	model, err := modelstore.Open(cfg.ModelSource, cfg.ModelPath)
	if err != nil {
		metrics.ModelLoads.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.ModelLoads.WithLabelValues("loaded").Inc()

	log.Info("Model loaded",
		zap.String("source", cfg.ModelSource),
		zap.String("path", cfg.ModelPath),
		zap.String("modelVersion", model.Version()),
		zap.String("language", model.Language()),
		zap.Int("intents", len(model.Intents())),
		zap.String("fingerprint", model.Fingerprint()),
		zap.Duration("took", time.Since(start)),
	)
	return model, nil
}

func newEngine(cfg config.EngineConfig, model *modelstore.Model, log logger.Logger, obs *observability.Observability) (*engine.Engine, error) {
	policy, err := engine.ParseResolutionPolicy(cfg.ResolutionPolicy)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(log.Named("engine")),
		engine.WithResolutionPolicy(policy),
		engine.WithObserver(metrics.NewEngineObserver(obs)),
	}
	if cfg.Locale != "" {
		opts = append(opts, engine.WithLocale(cfg.Locale))
	}
	if cfg.NullIntentThreshold > 0 {
		opts = append(opts, engine.WithNullIntentThreshold(cfg.NullIntentThreshold))
	}
	return engine.New(model, opts...)
}

func checkRegistry(path string, handlers []jobHandler, log *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("Activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}

	var taskTypes []string
	for _, h := range handlers {
		if h.IsEnabled() {
			taskTypes = append(taskTypes, h.GetTaskType())
		}
	}
	if err := reg.Check(taskTypes); err != nil {
		log.Warn("Activity registry out of date", zap.Error(err))
	}
}

func newMux(handlers []jobHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{}
		code := http.StatusOK
		for _, h := range handlers {
			if !h.IsEnabled() {
				continue
			}
			if err := h.HealthCheck(ctx); err != nil {
				status[h.GetTaskType()] = err.Error()
				code = http.StatusServiceUnavailable
			} else {
				status[h.GetTaskType()] = "healthy"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
