package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	appcapture "dropcode/internal/application/capture"
	appcustomer "dropcode/internal/application/customer"
	appdevice "dropcode/internal/application/device"
	appsession "dropcode/internal/application/session"
	subUsecases "dropcode/internal/application/subscription/usecases"
	"dropcode/internal/infrastructure/cache"
	"dropcode/internal/infrastructure/cloudphone"
	"dropcode/internal/infrastructure/config"
	"dropcode/internal/infrastructure/cryptopay"
	"dropcode/internal/infrastructure/database"
	"dropcode/internal/infrastructure/persistence/models"
	"dropcode/internal/infrastructure/repository"
	"dropcode/internal/infrastructure/scheduler"
	"dropcode/internal/infrastructure/storage"
	"dropcode/internal/infrastructure/telegram"
	httpRouter "dropcode/internal/interfaces/http"
	"dropcode/internal/interfaces/http/handlers"
	"dropcode/internal/shared/logger"
)

var (
	env         string
	autoMigrate bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the dropcode HTTP server, capture worker, and background sweeps.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log := logger.NewLogger()
	log.Infow("starting server", "environment", env)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	db := database.Get()

	if autoMigrate {
		if err := db.AutoMigrate(
			&models.DeviceModel{},
			&models.CustomerModel{},
			&models.PlanModel{},
			&models.SubscriptionModel{},
			&models.RentalSessionModel{},
			&models.CaptureArtifactModel{},
		); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		log.Infow("auto-migration completed")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warnw("redis unreachable, rate cache and webhook dedup degraded", "error", err)
	}
	pingCancel()

	// Repositories.
	deviceRepo := repository.NewDeviceRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	// Provider adapters and device pool.
	registry := cloudphone.BuildRegistry(cfg.Providers, log)
	allocator := appdevice.NewAllocator(deviceRepo, registry, log)
	tracker := appsession.NewTracker(sessionRepo, allocator, log)

	// Payment processor.
	processor := cryptopay.NewClient(cfg.Payment, log)
	rateSource := cryptopay.NewCachedRateSource(processor, cache.NewRateCache(redisClient), log)
	webhookDedup := cache.NewWebhookDeduplicator(redisClient)

	// Delivery and storage.
	notifier := telegram.NewNotifier(cfg.Telegram, log)
	imageStore, err := storage.NewImageStore(cfg.Capture.ImageDir)
	if err != nil {
		return fmt.Errorf("failed to initialize image store: %w", err)
	}

	// Application services.
	customerService := appcustomer.NewService(customerRepo, log)
	createSubUC := subUsecases.NewCreateSubscriptionUseCase(
		subscriptionRepo, planRepo, processor, rateSource, cfg.Payment.InvoiceExpirySeconds, log)
	activateSubUC := subUsecases.NewActivateSubscriptionUseCase(
		subscriptionRepo, planRepo, customerRepo, allocator, notifier, log)
	cancelSubUC := subUsecases.NewCancelSubscriptionUseCase(
		subscriptionRepo, customerRepo, allocator, notifier, log)
	expireSubUC := subUsecases.NewExpireSubscriptionsUseCase(
		subscriptionRepo, allocator, cfg.Payment.InvoiceExpirySeconds, log)

	orchestrator := appcapture.NewOrchestrator(
		registry,
		cfg.Capture.AppPackage,
		time.Duration(cfg.Capture.BootSettleSeconds)*time.Second,
		time.Duration(cfg.Capture.LaunchSettleSeconds)*time.Second,
		log,
	)
	worker := appcapture.NewWorker(
		orchestrator, tracker, sessionRepo, artifactRepo, customerRepo,
		imageStore, notifier,
		cfg.Capture.QueueSize,
		time.Duration(cfg.Capture.AttemptTimeoutSeconds)*time.Second,
		log,
	)
	requestCaptureUC := appcapture.NewRequestCaptureUseCase(
		customerRepo, subscriptionRepo, deviceRepo, allocator, tracker,
		artifactRepo, worker, cfg.Session.DefaultDurationMinutes, log)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	worker.Start(workerCtx)

	// Background sweeps.
	sched, err := scheduler.NewManager(log)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	if err := sched.RegisterSubscriptionSweep(expireSubUC.Execute); err != nil {
		return fmt.Errorf("failed to register subscription sweep: %w", err)
	}
	if err := sched.RegisterSessionSweep(tracker.SweepExpired); err != nil {
		return fmt.Errorf("failed to register session sweep: %w", err)
	}
	if err := sched.RegisterProviderSync(allocator.SyncFromProviders); err != nil {
		return fmt.Errorf("failed to register provider sync: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Errorw("failed to stop scheduler", "error", err)
		}
	}()

	// HTTP surface.
	botHandler := handlers.NewBotHandler(
		customerService, subscriptionRepo, planRepo, createSubUC, requestCaptureUC, log)
	webhookHandler := handlers.NewWebhookHandler(
		processor, webhookDedup, activateSubUC, log)
	deviceHandler := handlers.NewDeviceHandler(deviceRepo, allocator, log)
	adminHandler := handlers.NewAdminHandler(
		customerService, customerRepo, planRepo, subscriptionRepo, sessionRepo,
		tracker, activateSubUC, cancelSubUC, notifier, log)
	imageHandler := handlers.NewImageHandler(imageStore)

	router := httpRouter.NewRouter(botHandler, webhookHandler, deviceHandler, adminHandler, imageHandler, log)
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr(), "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
