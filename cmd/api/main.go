package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	apihttp "github.com/wms-platform/inbound-service/internal/api/http"
	"github.com/wms-platform/inbound-service/internal/application"
	"github.com/wms-platform/inbound-service/internal/config"
	"github.com/wms-platform/inbound-service/internal/infrastructure/events"
	"github.com/wms-platform/inbound-service/internal/infrastructure/memory"
	mongoStore "github.com/wms-platform/inbound-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/inbound-service/internal/infrastructure/rules"
	"github.com/wms-platform/inbound-service/internal/jobs"
	"github.com/wms-platform/inbound-service/pkg/cloudevents"
	"github.com/wms-platform/inbound-service/pkg/kafka"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
	"github.com/wms-platform/inbound-service/pkg/middleware"
	"github.com/wms-platform/inbound-service/pkg/mongodb"
	"github.com/wms-platform/inbound-service/pkg/outbox"
	"github.com/wms-platform/inbound-service/pkg/tracing"
)

const serviceName = "inbound-service"

// backend is a store together with its outbox
type backend interface {
	application.Backend
	Outbox() outbox.Repository
}

func main() {
	envFile := flag.String("env", "", "path to an env file (defaults to ./.env when present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	// Setup logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting inbound-service API", "store", cfg.StoreBackend)
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = cfg.OTLPEndpoint
	tracingConfig.Environment = cfg.Environment
	tracingConfig.Enabled = cfg.TracingEnabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", cfg.TracingEnabled, "endpoint", cfg.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mapper := events.NewMapper(cloudevents.NewEventFactory(cloudevents.SourceInbound))

	var (
		store     backend
		readiness = func(context.Context) error { return nil }
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = memory.NewStore(mapper)
		logger.Warn("Using the in-memory store; state is lost on restart")
	default:
		mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB, m)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to MongoDB")
			os.Exit(1)
		}
		defer mongoClient.Close(context.Background())

		mongoBackend, err := mongoStore.NewStore(ctx, mongoClient, mapper)
		if err != nil {
			logger.WithError(err).Error("Failed to prepare MongoDB collections")
			os.Exit(1)
		}
		store = mongoBackend
		readiness = mongoBackend.HealthCheck
		logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)
	}

	stores := application.StoresFrom(store)

	// Seed putaway rules and starter master data
	seed, err := rules.Load(cfg.PutawayRulesFile)
	if err != nil {
		logger.WithError(err).Error("Failed to load putaway rule seed", "file", cfg.PutawayRulesFile)
		os.Exit(1)
	}
	seeded, err := rules.Apply(ctx, seed, rules.Repositories{
		Rules:      stores.Rules,
		Locations:  stores.Locations,
		SkuConfigs: stores.SkuConfigs,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to apply putaway rule seed")
		os.Exit(1)
	}
	logger.Info("Master data seeded", "rules", seeded.Rules, "locations", seeded.Locations, "skuConfigs", seeded.SkuConfigs)

	// Outbox publisher
	if cfg.KafkaEnabled {
		kafkaProducer := kafka.NewProducer(cfg.Kafka)
		defer kafkaProducer.Close()
		instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)

		outboxPublisher := outbox.NewPublisher(store.Outbox(), instrumentedProducer, logger, m, &outbox.PublisherConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    100,
		})
		if err := outboxPublisher.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer outboxPublisher.Stop()
		logger.Info("Outbox publisher started", "brokers", cfg.Kafka.Brokers)
	} else {
		logger.Warn("Kafka disabled; outbox events are kept unpublished")
	}

	purgeJob := jobs.NewOutboxPurgeJob(store.Outbox(), cfg.Outbox.Retention, logger, m)
	if err := purgeJob.Start(cfg.Outbox.PurgeSchedule); err != nil {
		logger.WithError(err).Error("Failed to start outbox purge job")
		os.Exit(1)
	}
	defer purgeJob.Stop()

	// Application services
	opts := application.DefaultOptions()
	opts.Retry.MaxAttempts = cfg.Retry.MaxAttempts
	opts.Retry.InitialDelay = cfg.Retry.InitialDelay
	opts.DefaultReceivingLocation = cfg.DefaultReceivingLocation

	services, err := application.NewServices(stores, opts, logger, m)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize services")
		os.Exit(1)
	}

	// Setup Gin router with middleware
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger, m))

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, readiness))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	apihttp.RegisterRoutes(router, services, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
