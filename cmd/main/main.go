package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/cache"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/config"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/genai"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/healthcheck"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/jetstream"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/observer"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/storage"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/tenant"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/usecase"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting ZapMarketing outreach service",
		zap.String("environment", cfg.Environment),
		zap.String("owner_id", cfg.Owner.ID),
		zap.String("nats_url", cfg.NATS.URL),
	)

	// All storage and messaging operations run scoped to the configured owner.
	ownerCtx := tenant.WithOwnerID(context.Background(), cfg.Owner.ID)

	// Initialize repositories
	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate, cfg.Owner.ID)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	campaignRepo := storage.NewCampaignRepoAdapter(postgresRepo)
	visitRepo := storage.NewVisitRepoAdapter(postgresRepo)

	// Messaging gateway: real client when credentials are set, otherwise
	// the simulator so the rest of the stack stays exercisable.
	gw := initGateway(cfg)

	// Generative client runs in fallback-only mode without an API key.
	gen := genai.NewClient(cfg.Gemini.APIKey, genai.WithModel(cfg.Gemini.Model))
	if !gen.Configured() {
		logger.Log.Warn("GEMINI_API_KEY not set, using static fallback replies")
	}

	// JetStream client
	var jsClient *jetstream.Client
	if cfg.NATS.Enabled {
		jsClient, err = initJetStreamClient(ownerCtx, cfg.NATS.URL)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
		}
	}

	// Campaign dispatcher with its progress sink
	var sink usecase.ProgressSink = usecase.NopSink{}
	if jsClient != nil {
		sink = jetstream.NewProgressPublisher(jsClient)
	}
	dispatcher := usecase.NewDispatcher(gw, contactRepo, campaignRepo, sink, usecase.DispatchConfig{
		MinSendDelay: cfg.Dispatch.MinSendDelay,
		MaxSendDelay: cfg.Dispatch.MaxSendDelay,
		LogLines:     cfg.Dispatch.LogLines,
	}, usecase.WithCopyGenerator(gen))

	// Launch command consumer
	var launchConsumer *jetstream.LaunchConsumer
	if jsClient != nil {
		launchConsumer = jetstream.NewLaunchConsumer(jsClient, dispatcher, campaignRepo, cfg.Owner.ID)
		if err := launchConsumer.Start(ownerCtx); err != nil {
			logger.Log.Fatal("Failed to start campaign launch consumer", zap.Error(err))
		}
	}

	// Autonomous conversation poller
	poller, err := usecase.NewPoller(gw, gen, contactRepo, campaignRepo, visitRepo,
		cache.NewSeenCache(cfg.Bot.SeenCacheCap),
		usecase.PollerConfig{
			Interval:     cfg.Bot.Interval,
			HistoryLimit: cfg.Bot.HistoryLimit,
			PoolSize:     cfg.Bot.PoolSize,
		},
	)
	if err != nil {
		logger.Log.Fatal("Failed to initialize conversation poller", zap.Error(err))
	}
	poller.SetEnabled(cfg.Bot.Enabled)

	mainCtx, mainCancel := context.WithCancel(ownerCtx)
	defer mainCancel()

	utils.SafeGo(func() {
		poller.Run(mainCtx)
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("Conversation poller panicked",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
	})

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log, gw)

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	}

	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(3)

	// Stop the launch consumer and poller
	utils.SafeGo(func() {
		defer wg.Done()
		if launchConsumer != nil {
			logger.Log.Info("[shutdown] Stopping campaign launch consumer")
			if err := launchConsumer.Stop(); err != nil {
				logger.Log.Error("[shutdown] Error stopping launch consumer", zap.Error(err))
			}
		}
		logger.Log.Info("[shutdown] Stopping conversation poller")
		poller.Close()
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping consumers",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown health check server (includes metrics if enabled)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close database and messaging connections
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		}
		if jsClient != nil {
			logger.Log.Info("[shutdown] Closing JetStream connection")
			jsClient.Close()
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("ZapMarketing outreach service shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool, ownerID string) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// initGateway builds the Green API client, falling back to the local
// simulator when no instance credentials are configured.
func initGateway(cfg *config.Config) gateway.Gateway {
	gw, err := gateway.NewClient(cfg.Gateway.IDInstance, cfg.Gateway.APIToken,
		gateway.WithBaseURL(cfg.Gateway.APIURL),
	)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUnconfigured) {
			logger.Log.Fatal("Failed to initialize messaging gateway", zap.Error(err))
		}
		logger.Log.Warn("Gateway credentials not set, using simulated gateway")
		return gateway.NewSimulator(rand.New(rand.NewSource(time.Now().UnixNano())), 0.05)
	}
	return gw
}

// initJetStreamClient initializes the JetStream client and ensures the
// campaign stream exists.
func initJetStreamClient(ctx context.Context, url string) (*jetstream.Client, error) {
	client, err := jetstream.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	if err := client.SetupStream(ctx, jetstream.CampaignStreamConfig()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set up campaign stream: %w", err)
	}
	return client, nil
}
