package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stegvault/stegvault/internal/api"
	"github.com/stegvault/stegvault/internal/config"
	"github.com/stegvault/stegvault/internal/crypto"
	"github.com/stegvault/stegvault/internal/metrics"
	"github.com/stegvault/stegvault/internal/middleware"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	applyLogging(logger, cfg)

	logger.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
	}).Info("Starting stegvault daemon")

	m := metrics.NewMetrics()

	var tracerShutdown func(context.Context) error
	if cfg.Tracing.Enabled {
		tracerShutdown, err = initTracing(cfg.Tracing)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize tracing")
		}
		logger.WithField("service", cfg.Tracing.ServiceName).Info("Tracing enabled")
	}

	handler := api.NewHandler(logger, m, kdfParams(cfg), cfg.Server.MaxRequestBytes)

	reloader := config.NewReloader(configPath, cfg, logger, func(next *config.Config) {
		applyLogging(logger, next)
		handler.SetKDFParams(kdfParams(next))
	})

	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	handler.Register(router)

	var root http.Handler = router
	if cfg.Tracing.Enabled {
		root = middleware.TracingMiddleware(cfg.Tracing.RedactSensitive)(root)
	}
	root = middleware.LoggingMiddleware(logger, m)(root)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go func() {
		if err := reloader.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
			logger.WithError(err).Warn("config watcher stopped")
		}
	}()

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	cancelWatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Tracer shutdown failed")
		}
	}
}

func kdfParams(cfg *config.Config) crypto.Params {
	return crypto.Params{
		Time:      cfg.KDF.TimeCost,
		MemoryKiB: cfg.KDF.MemoryKiB,
		Threads:   cfg.KDF.Parallelism,
	}
}

func applyLogging(logger *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// initTracing installs a stdout span exporter. Spans go to the process log;
// wiring a collector is an operational concern left to deployments that
// need one.
func initTracing(cfg config.TracingConfig) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
