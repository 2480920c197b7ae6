package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/memevote/internal/api"
	"github.com/timmy/memevote/internal/api/middleware"
	"github.com/timmy/memevote/internal/config"
	"github.com/timmy/memevote/internal/events"
	"github.com/timmy/memevote/internal/logger"
	"github.com/timmy/memevote/internal/metrics"
	"github.com/timmy/memevote/internal/repository"
	"github.com/timmy/memevote/internal/service"
	"github.com/timmy/memevote/internal/storage"
)

const metricsNamespace = "memevote"

func main() {
	// Initialize logger first (LOG_LEVEL, LOG_FORMAT, APP_ENV, LOG_FILE...)
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	votingMetrics := metrics.New(reg, metricsNamespace)
	httpMetrics := metrics.NewHTTPMetrics(reg, metricsNamespace)

	// Document store
	backend, err := repository.NewBackend(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize document store")
	}
	store := repository.NewDocumentStore(backend)
	store.SetObserver(votingMetrics)
	defer store.Close()

	appLogger.WithFields(logger.Fields{
		"backend": cfg.Store.Backend,
	}).Info("Document store ready")

	// Image storage (supports local disk, MinIO, R2, S3)
	objectStorage, err := storage.NewStorage(storage.ConfigFrom(&cfg.Storage))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	// Event sinks
	var publishers events.Multi
	var hub *events.Hub
	if cfg.Events.Live.Enabled {
		hub = events.NewHub()
		go hub.Run(ctx)
		publishers = append(publishers, hub)
	}
	if cfg.Events.Kafka.Enabled {
		publishers = append(publishers, events.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic))
		appLogger.WithFields(logger.Fields{
			"brokers": cfg.Events.Kafka.Brokers,
			"topic":   cfg.Events.Kafka.Topic,
		}).Info("Kafka event publishing enabled")
	}
	defer publishers.Close()

	// Services
	oracle := service.NewEligibilityOracle(store)
	votingService := service.NewVotingService(
		store,
		oracle,
		publishers,
		votingMetrics,
		appLogger,
		&service.VotingConfig{
			VoteLimit:   cfg.Voting.VoteLimit,
			CreateLimit: cfg.Voting.CreateLimit,
		},
	)
	imageService := service.NewImageService(objectStorage, cfg.Server.MaxUploadBytes)

	routerCfg := &api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Logger:      appLogger,
		Voting:      votingService,
		Allowlist:   service.NewAllowlistService(store),
		Images:      imageService,
		Hub:         hub,
		HTTPMetrics: httpMetrics,
	}
	if local, ok := objectStorage.(*storage.LocalStorage); ok {
		routerCfg.Uploads = local
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	router := api.SetupRouter(routerCfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
