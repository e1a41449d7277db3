package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigilstack/vigil-telemetry/internal/api"
	"github.com/vigilstack/vigil-telemetry/internal/cache"
	"github.com/vigilstack/vigil-telemetry/internal/classify"
	"github.com/vigilstack/vigil-telemetry/internal/config"
	"github.com/vigilstack/vigil-telemetry/internal/detectors"
	"github.com/vigilstack/vigil-telemetry/internal/engine"
	"github.com/vigilstack/vigil-telemetry/internal/metrics"
	"github.com/vigilstack/vigil-telemetry/internal/models"
	"github.com/vigilstack/vigil-telemetry/internal/patterns"
	"github.com/vigilstack/vigil-telemetry/internal/sink"
	"github.com/vigilstack/vigil-telemetry/internal/storage"
	"github.com/vigilstack/vigil-telemetry/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting telemetry engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var provider cache.Provider = cache.NewMemoryProvider()
	if cfg.Storage.Enabled && cfg.Storage.Addr != "" {
		valkey, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Storage.Addr,
			Username:     cfg.Storage.Username,
			Password:     cfg.Storage.Password,
			DB:           cfg.Storage.DB,
			DialTimeout:  cfg.Storage.DialTimeout,
			ReadTimeout:  cfg.Storage.ReadTimeout,
			WriteTimeout: cfg.Storage.WriteTimeout,
			MaxRetries:   cfg.Storage.MaxRetries,
			TLS:          cfg.Storage.TLS,
		})
		if err != nil {
			logger.Warn("valkey unavailable, falling back to in-memory storage", slog.Any("error", err))
		} else {
			provider = valkey
		}
	}

	store := storage.New(provider, cfg.Storage.KeyPrefix, logger)
	defer store.Close()

	sinkClient := sink.NewClient(sink.Config{
		BaseURL:    cfg.Sink.BaseURL,
		APIKey:     cfg.Sink.APIKey,
		Timeout:    cfg.Sink.Timeout,
		MaxRetries: cfg.Sink.MaxRetries,
		SampleRate: cfg.Sink.SampleRate,
		Enabled:    cfg.Sink.Enabled,
	}, logger)

	classifier, err := classify.NewClassifier(cfg.Classify.RulesPath, logger)
	if err != nil {
		logger.Error("failed to load classification rules", slog.Any("error", err))
		os.Exit(1)
	}

	eng := engine.New(
		logger,
		engine.Options{
			AutoClassify:        cfg.Classify.Enabled,
			ConfidenceThreshold: cfg.Classify.ConfidenceThreshold,
			AnomalyEnabled:      cfg.Anomaly.Enabled,
			PatternSweepEvery:   cfg.Patterns.SweepInterval,
			TrendSweepEvery:     cfg.Trend.SweepInterval,
			TrendMetrics:        cfg.Trend.Metrics,
		},
		classifier,
		detectors.NewAnomalyDetector(cfg.Anomaly.WindowSize, cfg.Anomaly.Sensitivity),
		detectors.NewTrendAnalyzer(store, logger),
		patterns.NewTrackerWithLimits(store, logger, cfg.Patterns.IdleEviction, cfg.Patterns.AlertFrequency),
		store,
		sinkClient,
	)
	subscribeAlerts(eng, logger)

	server := api.NewServer(cfg.Server.Address, eng)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("api server listening", slog.String("address", cfg.Server.Address))
		if serveErr := server.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("api server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	go func() {
		if runErr := eng.Run(ctx); runErr != nil {
			logger.Error("sweep loops exited", slog.Any("error", runErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	eng.Close()
	logger.Info("telemetry engine stopped")
}

// subscribeAlerts logs the actionable signal kinds so operators see them even
// without an external alerting consumer.
func subscribeAlerts(eng *engine.Engine, logger *slog.Logger) {
	eng.Subscribe(engine.SignalCriticalError, func(signal engine.Signal) {
		if event, ok := signal.Payload.(models.ErrorEvent); ok {
			logger.Error("critical error recorded",
				slog.String("id", event.ID),
				slog.String("service", event.Context.Service),
				slog.String("message", event.Message))
		}
	})
	eng.Subscribe(engine.SignalPatternAlert, func(signal engine.Signal) {
		if pattern, ok := signal.Payload.(models.ErrorPattern); ok {
			logger.Warn("pattern alert",
				slog.String("pattern", pattern.ID),
				slog.Float64("frequency", pattern.Frequency))
		}
	})
	eng.Subscribe(engine.SignalAnomalyDetected, func(signal engine.Signal) {
		if event, ok := signal.Payload.(models.PerformanceEvent); ok && event.Anomaly != nil {
			logger.Warn("performance anomaly",
				slog.String("metric", event.Metric),
				slog.Float64("value", event.Value),
				slog.String("reason", event.Anomaly.Reason))
		}
	})
	eng.Subscribe(engine.SignalPerformanceRegression, func(signal engine.Signal) {
		if report, ok := signal.Payload.(detectors.RegressionReport); ok {
			logger.Warn("performance regression",
				slog.String("metric", report.Metric),
				slog.Float64("changePct", report.ChangePct))
		}
	})
}
