// cmd/loan-assistant/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"loan-assistant/internal/api"
	"loan-assistant/internal/common/camunda"
	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/observability"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/llm"
	"loan-assistant/internal/loan/pii"
	"loan-assistant/internal/models"
	"loan-assistant/internal/notify"
	"loan-assistant/internal/sessionstore"
	"loan-assistant/internal/telemetry"

	pt "loan-assistant/internal/workers/conversation/process-turn"
)

type pinger interface {
	Ping(ctx context.Context) error
}

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

	zapLog.Info("starting loan assistant",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("sessionStore", cfg.Session.Store),
		zap.Strings("metricsSinks", cfg.Metrics.Sinks),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Session store ---
	store, err := sessionstore.New(cfg, log)
	if err != nil {
		zapLog.Fatal("session store init failed", zap.Error(err))
	}
	var opts []api.Option
	if p, ok := store.(pinger); ok {
		err = retryWithBackoff(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return p.Ping(pingCtx)
		}, 10, time.Second, zapLog, "session store connection")
		if err != nil {
			zapLog.Fatal("session store unreachable", zap.Error(err))
		}
		opts = append(opts, api.WithReadyCheck("session_store", p.Ping))
	}
	if c, ok := store.(interface{ Close() error }); ok {
		defer c.Close()
	}

	// --- Metrics sinks ---
	var sinks *telemetry.Sinks
	err = retryWithBackoff(func() error {
		var err error
		sinks, err = telemetry.FromConfig(ctx, cfg, afero.NewOsFs(), obs, log)
		return err
	}, 5, 2*time.Second, zapLog, "metrics sinks initialization")
	if err != nil {
		zapLog.Fatal("metrics sinks failed after retries", zap.Error(err))
	}
	defer sinks.Close()

	// --- Manual review notifier ---
	reviewer, err := notify.FromConfig(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("review notifier init failed", zap.Error(err))
	}

	// --- Conversation core ---
	if cfg.LLM.APIKey == "" {
		zapLog.Warn("no Gemini API key configured, every turn will fall back to the apology reply")
	}
	assistant := llm.NewClient(llm.LoadConfig(cfg.LLM), log)
	controller := conversation.NewController(assistant, pii.New(), sinks, reviewer, log)
	manager := conversation.NewManager(controller, store, log)

	switch {
	case sinks.Postgres != nil:
		opts = append(opts, api.WithDaily(sinks.Postgres.DailySummary))
	case sinks.JSONL != nil:
		jsonl := sinks.JSONL
		opts = append(opts, api.WithDaily(func(_ context.Context, day time.Time) (models.DailySummary, error) {
			return jsonl.Summary(day)
		}))
	}

	// --- Optional Zeebe worker ---
	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		zc, err := camunda.NewClient(ctx, cfg.Camunda)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		defer zc.Close()
		opts = append(opts, api.WithReadyCheck("zeebe", zc.HealthCheck))

		if config.IsWorkerEnabled(cfg, pt.TaskType) {
			wcfg := pt.LoadConfig(config.GetWorkerConfig(cfg, pt.TaskType))
			handler := pt.NewHandler(wcfg, manager, log)
			workers = append(workers, camunda.StartWorker(zc.Zeebe(), pt.TaskType, wcfg.MaxJobsActive, handler, log))
		} else {
			zapLog.Info("worker disabled", zap.String("taskType", pt.TaskType))
		}
	}

	// --- HTTP surface ---
	server := api.NewServer(cfg.Server, manager, log, opts...)
	httpServer := server.NewHTTPServer(cfg.Server)
	go func() {
		zapLog.Info("http server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received, draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("loan assistant stopped")
}
