package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"scamshield/internal/api"
	"scamshield/internal/api/handlers"
	apimiddleware "scamshield/internal/api/middleware"
	"scamshield/internal/backend"
	"scamshield/internal/config"
	"scamshield/internal/domain/services"
	"scamshield/internal/domain/services/heuristic"
	"scamshield/internal/grpc/healthcheck"
	"scamshield/internal/infrastructure/cache"
	"scamshield/internal/infrastructure/database"
	"scamshield/internal/infrastructure/database/repository"
	"scamshield/internal/infrastructure/memory"
	"scamshield/internal/streaming"
	"scamshield/pkg/logger"
)

// stores groups the persistence layer selected by configuration
type stores struct {
	scans       services.ScanRepository
	keys        services.APIKeyRepository
	webhooks    services.WebhookRepository
	stats       services.StatsStore
	requestLogs services.RequestLogStore
}

func main() {
	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.IsProduction() {
		log = logger.NewProduction()
	} else {
		log = logger.NewDevelopment()
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting ScamShield")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure
	db, redisCache, err := initInfrastructure(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize infrastructure")
	}
	defer func() {
		if db != nil {
			db.Close()
		}
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	st := initStores(cfg, db, redisCache, log)

	// Initialize streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without scan event fan-out")
			natsPublisher = nil
		} else {
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}

	eventBus := streaming.NewEventBus(natsPublisher, log)
	log.Info().Bool("nats_enabled", natsPublisher != nil).Msg("event bus initialized")

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)

	// Remote classifier; nil means heuristic only
	var remote services.RemoteClassifier
	if cfg.Backend.Enabled {
		remote = newBackendClient(cfg.Backend, log)
		log.Info().Str("base_url", cfg.Backend.BaseURL).Msg("remote classifier enabled")
	}

	// Initialize services
	analyzer := heuristic.New(heuristic.Config{
		Jitter:      cfg.Heuristic.Jitter,
		Seed:        cfg.Heuristic.Seed,
		MarkerOpen:  cfg.Heuristic.MarkerOpen,
		MarkerClose: cfg.Heuristic.MarkerClose,
	})

	webhookService := services.NewWebhookService(st.webhooks, &services.WebhookServiceConfig{
		WorkerCount:    cfg.Webhooks.Workers,
		QueueSize:      cfg.Webhooks.QueueSize,
		DefaultTimeout: cfg.Webhooks.Timeout,
	}, log)
	defer webhookService.Stop()

	scanCfg := services.DefaultScanServiceConfig()
	scanCfg.HighRiskThreshold = cfg.Webhooks.HighRiskThreshold
	if cfg.Backend.Timeout > 0 {
		scanCfg.RemoteTimeout = cfg.Backend.Timeout
	}
	scanService := services.NewScanService(analyzer, remote, st.scans, st.stats, scanCfg, log)
	scanService.SetEventTrigger(webhookService)
	scanService.SetEventPublisher(streaming.NewEventBusPublisher(eventBus, wsHub))

	keyService := services.NewAPIKeyService(st.keys, services.APIKeyServiceConfig{
		QuotaWarnRatio: cfg.Auth.QuotaWarnRatio,
		BootstrapKey:   cfg.Auth.BootstrapKey,
	}, log)
	keyService.SetEventTrigger(webhookService)

	if cfg.Reports.Enabled {
		reporter := services.NewReporter(st.stats, webhookService, cfg.Reports.Interval, log)
		go func() {
			if err := reporter.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("reporter exited")
			}
		}()
		defer reporter.Stop()
	}

	// Dependencies probed by /ready and the gRPC health service
	checks := map[string]handlers.Pinger{}
	grpcChecks := map[string]healthcheck.Pinger{}
	if db != nil {
		checks["postgres"] = db
		grpcChecks["postgres"] = db
	}
	if redisCache != nil {
		checks["redis"] = redisCache
		grpcChecks["redis"] = redisCache
	}

	h := handlers.NewHandlers(handlers.Dependencies{
		Version:     cfg.App.Version,
		Scans:       scanService,
		Keys:        keyService,
		Webhooks:    webhookService,
		RequestLogs: st.requestLogs,
		EventBus:    eventBus,
		WSHub:       wsHub,
		Checks:      checks,
		Logger:      log,
	})

	var limiter apimiddleware.RateChecker
	if redisCache != nil {
		limiter = redisCache
	} else if cfg.RateLimit.Enabled {
		log.Warn().Msg("rate limiting requires Redis, continuing without it")
	}

	router := api.NewRouter(*cfg, h, keyService, st.requestLogs, limiter, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// gRPC health service for load balancers and orchestrators
	var grpcServer *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr())
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Server.GRPCAddr()).Msg("failed to listen for gRPC")
		}

		grpcServer = grpc.NewServer()
		checker := healthcheck.NewChecker(grpcChecks, healthcheck.DefaultInterval, log)
		checker.Register(grpcServer)
		go checker.Run(ctx)

		go func() {
			log.Info().Str("addr", cfg.Server.GRPCAddr()).Msg("starting gRPC server")
			if err := grpcServer.Serve(lis); err != nil {
				log.Error().Err(err).Msg("gRPC server failed")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// closes the NATS connection too
	eventBus.Close()

	log.Info().Msg("server stopped")
}

// initInfrastructure connects to the optional PostgreSQL and Redis
// backends. A nil result means the in-memory store is used instead.
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.PostgresDB, *cache.RedisCache, error) {
	var db *database.PostgresDB
	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		var err error
		redisCache, err = cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	return db, redisCache, nil
}

func initStores(cfg *config.Config, db *database.PostgresDB, redisCache *cache.RedisCache, log *logger.Logger) stores {
	var st stores

	if db != nil {
		st.scans = repository.NewScanRepository(db.Pool())
		st.keys = repository.NewAPIKeyRepository(db.Pool())
		st.webhooks = repository.NewWebhookRepository(db.Pool())
		log.Info().Msg("repositories initialized with database")
	} else {
		st.scans = memory.NewScanStore()
		st.keys = memory.NewAPIKeyStore()
		st.webhooks = memory.NewWebhookStore()
		log.Warn().Msg("running without database, scans and keys are kept in memory")
	}

	if redisCache != nil {
		st.stats = cache.NewStatsStore(redisCache)
		st.requestLogs = cache.NewRequestLogList(redisCache, cfg.RequestLogs.Capacity)
	} else {
		st.stats = memory.NewStatsStore()
		st.requestLogs = memory.NewRequestLogRing(cfg.RequestLogs.Capacity)
	}

	return st
}

func newBackendClient(cfg config.BackendConfig, log *logger.Logger) *backend.Client {
	var tokens backend.TokenStore
	switch {
	case cfg.TokenFile != "":
		tokens = backend.NewFileTokenStore(cfg.TokenFile)
	case cfg.APIToken != "":
		tokens = backend.NewMemoryTokenStore(&backend.Tokens{AccessToken: cfg.APIToken, TokenType: "bearer"})
	}

	return backend.NewClient(backend.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Tokens:  tokens,
	}, log)
}
