package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cyberguard/guardian/pkg/app/ensemble"
	"github.com/cyberguard/guardian/pkg/app/metrics"
	appModeration "github.com/cyberguard/guardian/pkg/app/moderation"
	appPlatform "github.com/cyberguard/guardian/pkg/app/platform"
	"github.com/cyberguard/guardian/pkg/cache"
	"github.com/cyberguard/guardian/pkg/config"
	handlers "github.com/cyberguard/guardian/pkg/handlers/http"
	wsHandlers "github.com/cyberguard/guardian/pkg/handlers/websocket"
	"github.com/cyberguard/guardian/pkg/infra/audit"
	"github.com/cyberguard/guardian/pkg/infra/broadcast"
	"github.com/cyberguard/guardian/pkg/infra/gemini"
	"github.com/cyberguard/guardian/pkg/infra/httpx"
	"github.com/cyberguard/guardian/pkg/infra/langdetect"
	infraLogger "github.com/cyberguard/guardian/pkg/infra/logger"
	"github.com/cyberguard/guardian/pkg/infra/scorer"
	"github.com/cyberguard/guardian/pkg/server"
)

func main() {
	ctx := context.Background()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	cacheClient, err := cache.NewClient(cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TLS:      cfg.Redis.TLS,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	// classifiers behind circuit breakers
	primaryClient := httpx.NewBreakerClient(
		httpx.NewDefaultClient(),
		httpx.NewCircuitBreaker(cfg.Detection.Primary.Name, 30*time.Second, 5),
	)
	secondaryClient := httpx.NewBreakerClient(
		httpx.NewDefaultClient(),
		httpx.NewCircuitBreaker(cfg.Detection.Secondary.Name, 30*time.Second, 5),
	)
	primary := scorer.NewProvider(cfg.Detection.Primary, cfg.Detection.DecisionThreshold,
		cfg.Detection.MaxInputRunes, primaryClient, logger)
	secondary := scorer.NewProvider(cfg.Detection.Secondary, cfg.Detection.DecisionThreshold,
		cfg.Detection.MaxInputRunes, secondaryClient, logger)

	oracle := gemini.NewAssessor(cfg.Gemini, logger)

	ensembleEngine := ensemble.NewEngine(primary, secondary, oracle,
		ensemble.ThresholdsFromConfig(cfg), logger)

	tracker := metrics.NewTracker(logger)
	hub := broadcast.NewHub(logger)
	detector := langdetect.NewDetector()

	var exporter appModeration.Exporter
	var kafkaExporter audit.Exporter
	if cfg.Audit.Enabled {
		kafkaExporter, err = audit.NewKafkaExporter(cfg.Audit)
		if err != nil {
			logger.Fatalf("Failed to initialize audit exporter: %v", err)
		}
		defer kafkaExporter.Close()
		exporter = kafkaExporter
	}

	moderationEngine := appModeration.NewEngine(ensembleEngine, detector, tracker, hub,
		exporter, cfg.Detection.DeleteConfidenceThreshold, logger)

	platformClient := httpx.NewBreakerClient(
		httpx.NewDefaultClient(),
		httpx.NewCircuitBreaker("platform-api", 30*time.Second, 5),
	)
	factory := appPlatform.NewFactory(platformClient, cacheClient, logger)
	manager := appPlatform.NewManager(factory, moderationEngine, cfg, cacheClient, logger)
	manager.Restore(ctx)

	handlerTransport := handlers.HandlerTransport{
		RootHandler:         handlers.NewRootHandler(),
		HealthHandler:       handlers.NewHealthHandler(tracker, hub, manager),
		StatsHandler:        handlers.NewStatsHandler(tracker),
		ResetMetricsHandler: handlers.NewResetMetricsHandler(logger, tracker),

		ConnectPlatformHandler:    handlers.NewConnectPlatformHandler(logger, manager),
		DisconnectPlatformHandler: handlers.NewDisconnectPlatformHandler(logger, manager),
		ListPlatformsHandler:      handlers.NewListPlatformsHandler(manager),
	}

	websocketTransport := &wsHandlers.HandlerTransportDTO{
		EventsHandler: wsHandlers.NewEventsHandler(logger, hub, tracker),
	}

	srv := server.NewApiServer(server.ApiServerDI{
		HandlerTransport:   handlerTransport,
		WebsocketTransport: websocketTransport,
		Config:             cfg,
		Logger:             logger,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	fmt.Println("shutting down server...")
	manager.Shutdown()
	if err := srv.Shutdown(); err != nil {
		fmt.Println("error shutting down server:", err)
		os.Exit(1)
	}
	fmt.Println("server gracefully stopped")
}
