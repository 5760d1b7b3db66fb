package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"supplier-engine-service/internal/catalog"
	"supplier-engine-service/internal/clients/supplier"
	"supplier-engine-service/internal/config"
	"supplier-engine-service/internal/database"
	"supplier-engine-service/internal/events"
	"supplier-engine-service/internal/handlers"
	"supplier-engine-service/internal/middleware"
	"supplier-engine-service/internal/repository"
	"supplier-engine-service/internal/secrets"
	"supplier-engine-service/internal/services"
)

const serviceName = "supplier-engine-service"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()
	logger := newLogger(cfg)

	ctx := context.Background()

	// Supplier credentials from GCP Secret Manager override the environment
	var secretManager *secrets.GCPSecretManager
	if cfg.GCPProjectID != "" && cfg.SupplierSecretName != "" {
		sm, err := secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize GCP Secret Manager, using environment credentials")
		} else {
			secretManager = sm
			secret, err := sm.GetSupplierSecret(ctx, cfg.SupplierSecretName)
			if err != nil {
				logger.WithError(err).Warn("Failed to load supplier secret, using environment credentials")
			} else {
				secret.Apply(cfg)
				logger.Info("Supplier credentials loaded from GCP Secret Manager")
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	readyChecks := map[string]handlers.ReadyCheck{}

	// Snapshot storage
	var store repository.SnapshotStore
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		gormStore, err := repository.NewGormStore(db)
		if err != nil {
			logger.WithError(err).Fatal("Failed to prepare snapshot table")
		}
		store = gormStore
		readyChecks["database"] = pingDatabase(db)
		logger.Info("Using PostgreSQL snapshot storage")
	default:
		fileStore, err := repository.NewFileStore(cfg.DataDir)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open data directory")
		}
		store = fileStore
		logger.WithField("dir", cfg.DataDir).Info("Using file snapshot storage")
	}

	// Webhook idempotency
	var seen repository.IdempotencyStore = repository.NewMemoryIdempotencyStore(10000)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Invalid REDIS_URL, using in-memory webhook deduplication")
		} else {
			redisClient = redis.NewClient(opts)
			seen = repository.NewRedisIdempotencyStore(redisClient, serviceName+":webhook:")
			readyChecks["redis"] = func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}
			logger.Info("Using Redis webhook deduplication")
		}
	}

	// Initialize NATS events publisher
	var publisher events.Publisher = events.NewNoopPublisher(logger)
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, serviceName, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize events publisher (events won't be published)")
		} else {
			publisher = natsPublisher
			logger.Info("NATS events publisher initialized")
		}
	}

	// Supplier client
	client, err := supplier.New(supplier.Config{
		BaseURL:     cfg.SupplierBaseURL,
		Email:       cfg.SupplierEmail,
		Password:    cfg.SupplierPassword,
		APIKey:      cfg.SupplierAPIKey,
		MinInterval: cfg.SupplierMinInterval,
		MaxRetries:  cfg.SupplierMaxRetries,
		Timeout:     cfg.SupplierTimeout,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create supplier client")
	}

	// Initialize repositories
	catalogRepo, err := repository.NewCatalogRepository(ctx, store)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load catalog")
	}
	orderRepo, err := repository.NewOrderRepository(ctx, store)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load orders")
	}
	inventoryRepo, err := repository.NewInventoryRepository(ctx, store)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load inventory")
	}
	disputeRepo, err := repository.NewDisputeRepository(ctx, store)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load disputes")
	}

	// Initialize services
	policy := catalog.Policy{
		Markup:          cfg.Pricing.Markup,
		USDToEUR:        cfg.Pricing.USDToEUR,
		MinScore:        cfg.Pricing.MinScore,
		CostCeiling:     cfg.Pricing.CostCeiling,
		ShippingCeiling: cfg.Pricing.ShippingCeiling,
		RetailCeiling:   cfg.Pricing.RetailCeiling,
		Destination:     cfg.Pricing.DestinationCountry,
		Origin:          cfg.Pricing.OriginCountry,
	}

	scanner := services.NewCatalogScanner(client, catalogRepo, policy, services.ScannerConfig{
		Keywords:       cfg.ScanKeywords,
		PageSize:       cfg.ScanPageSize,
		MaxCatalogSize: cfg.MaxCatalogSize,
	}, publisher, logger)

	orders := services.NewOrderManager(client, orderRepo, services.OrderManagerConfig{
		MaxRetries:          cfg.OrderMaxRetries,
		LowBalanceThreshold: cfg.LowBalanceThreshold,
		DefaultLogistic:     cfg.DefaultLogistic,
		OriginCountry:       cfg.Pricing.OriginCountry,
		DefaultCountry:      cfg.Pricing.DestinationCountry,
	}, publisher, logger)

	monitor := services.NewInventoryMonitor(client, catalogRepo, inventoryRepo, policy, services.InventoryConfig{
		LowStockThreshold:  cfg.LowStockThreshold,
		PriceChangePercent: cfg.PriceChangePercent,
		AutoReprice:        cfg.AutoReprice,
		ItemDelay:          cfg.StockItemDelay,
	}, publisher, logger)

	disputes := services.NewDisputeManager(client, disputeRepo, orders, orders, services.DisputeConfig{
		ShipSLA:     cfg.ShipSLA,
		TrackingSLA: cfg.TrackingSLA,
		DeliverySLA: cfg.DeliverySLA,
	}, publisher, logger)

	webhooks := services.NewWebhookService(orders, monitor, seen, services.WebhookConfig{
		BufferSize: cfg.WebhookBufferSize,
	}, logger)

	// Background jobs
	scheduler := services.NewScheduler(logger)
	jobs := []services.Job{
		{
			Name:     "scan",
			Interval: cfg.ScanInterval,
			Run: func(ctx context.Context) error {
				_, err := scanner.Scan(ctx, "scheduled")
				if errors.Is(err, services.ErrScanInProgress) {
					return nil
				}
				return err
			},
		},
		{
			Name:         "stock",
			Interval:     cfg.StockInterval,
			InitialDelay: cfg.StockInitialDelay,
			Run: func(ctx context.Context) error {
				_, err := monitor.CheckStock(ctx)
				return err
			},
		},
		{
			Name:     "orders",
			Interval: cfg.OrderInterval,
			Run: func(ctx context.Context) error {
				_, err := orders.RunCycle(ctx)
				return err
			},
		},
		{
			Name:         "disputes",
			Interval:     cfg.DisputeInterval,
			InitialDelay: cfg.DisputeInitialDelay,
			Run: func(ctx context.Context) error {
				_, err := disputes.RunCycle(ctx)
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := scheduler.Register(job); err != nil {
			logger.WithError(err).Fatal("Failed to register job")
		}
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	webhooks.Start(workerCtx)
	scheduler.Start()

	// Initialize handlers
	h := &handlers.Handlers{
		Health:    handlers.NewHealthHandler(readyChecks),
		Catalog:   handlers.NewCatalogHandler(scanner),
		Orders:    handlers.NewOrderHandler(orders),
		Inventory: handlers.NewInventoryHandler(monitor),
		Disputes:  handlers.NewDisputeHandler(disputes),
		Triggers:  handlers.NewTriggerHandler(scheduler, client),
		Webhooks:  handlers.NewWebhookHandler(webhooks, cfg.WebhookAckTimeout),
	}

	router := setupRouter(cfg, logger, h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Environment}).Info("Supplier engine starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down supplier engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Stop background workers
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Scheduler did not stop in time")
	}
	webhooks.Stop()
	stopWorkers()

	// Persist anything left dirty by an interrupted cycle
	for name, flush := range map[string]func(context.Context) error{
		"catalog":   catalogRepo.Flush,
		"orders":    orderRepo.Flush,
		"inventory": inventoryRepo.Flush,
		"disputes":  disputeRepo.Flush,
	} {
		if err := flush(shutdownCtx); err != nil {
			logger.WithError(err).WithField("collection", name).Error("Failed to flush snapshot")
		}
	}

	publisher.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
	if secretManager != nil {
		if err := secretManager.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close secret manager")
		}
	}

	logger.Info("Supplier engine stopped")
}

// newLogger builds the process logger: JSON outside development
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.Environment == "development" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func pingDatabase(db *gorm.DB) handlers.ReadyCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// setupRouter configures the HTTP router
func setupRouter(cfg *config.Config, logger *logrus.Logger, h *handlers.Handlers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Security headers middleware
	router.Use(middleware.SecurityHeaders())

	// CORS middleware
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}
	router.Use(middleware.CORS(origins))

	h.Register(router, cfg.WebhookSecret)
	return router
}
