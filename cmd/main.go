package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"payments-service/internal/clients"
	"payments-service/internal/config"
	"payments-service/internal/events"
	"payments-service/internal/gateway"
	"payments-service/internal/handlers"
	"payments-service/internal/idempotency"
	"payments-service/internal/middleware"
	"payments-service/internal/models"
	"payments-service/internal/repository"
	"payments-service/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logrus.New()
	appLogger.SetFormatter(&logrus.JSONFormatter{})
	appLogger.SetLevel(logrus.InfoLevel)

	db, err := connectDatabase(cfg.DatabaseURL, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.PaymentTransaction{},
		&models.Refund{},
		&models.Reservation{},
		&models.WebhookEvent{},
	); err != nil {
		log.Printf("Warning: Auto-migration failed: %v", err)
	}

	ledgerRepo := repository.NewLedgerRepository(db)

	stripeGateway, err := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})
	if err != nil {
		log.Fatalf("Failed to initialize payment gateway: %v", err)
	}

	var idemStore idempotency.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		idemStore = idempotency.NewRedisStore(redis.NewClient(opts))
	} else {
		log.Println("WARNING: REDIS_URL not set, refund idempotency disabled")
	}

	var notifier clients.Notifier
	if cfg.NotificationServiceURL != "" {
		notifier = clients.NewNotificationClient(cfg.NotificationServiceURL, appLogger)
	} else {
		log.Println("WARNING: NOTIFICATION_SERVICE_URL not set, notifications disabled")
	}

	eventsPublisher, err := events.NewPublisher(cfg.NatsURL, appLogger)
	if err != nil {
		log.Printf("WARNING: Failed to initialize events publisher: %v (events won't be published)", err)
		eventsPublisher = nil
	} else {
		defer eventsPublisher.Close()
	}

	transactionService := services.NewTransactionService(ledgerRepo, stripeGateway, notifier, eventsPublisher, appLogger)
	refundService := services.NewRefundService(ledgerRepo, stripeGateway, idemStore, cfg.RefundIdempotencyTTL, notifier, eventsPublisher, appLogger)
	webhookService := services.NewWebhookService(ledgerRepo, stripeGateway, eventsPublisher, appLogger)

	transactionHandler := handlers.NewTransactionHandler(transactionService, refundService)
	refundHandler := handlers.NewRefundHandler(refundService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)

	router := setupRouter(transactionHandler, refundHandler, webhookHandler)

	log.Printf("Payments service starting on port %s (env: %s)", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// connectDatabase establishes a connection to the database
func connectDatabase(databaseURL string, production bool) (*gorm.DB, error) {
	logLevel := logger.Info
	if production {
		logLevel = logger.Silent
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// setupRouter configures the HTTP router
func setupRouter(transactionHandler *handlers.TransactionHandler, refundHandler *handlers.RefundHandler, webhookHandler *handlers.WebhookHandler) *gin.Engine {
	router := gin.Default()

	rateLimits := middleware.NewLedgerRateLimits()

	router.Use(middleware.TenantMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "payments-service",
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireTenantID())
	v1.Use(middleware.RateLimitMiddleware(rateLimits.APIGeneral))
	{
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", transactionHandler.CreateTransaction)
			transactions.GET("", transactionHandler.ListTransactions)
			transactions.GET("/:id", transactionHandler.GetTransaction)
			transactions.PATCH("/:id", transactionHandler.UpdateTransaction)
			transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
			transactions.POST("/:id/refresh", transactionHandler.RefreshChargeStatus)
			transactions.POST("/:id/repair", transactionHandler.RepairRefundFields)
		}

		v1.GET("/reservations/:reservationId/transactions", transactionHandler.ListReservationTransactions)
		v1.GET("/reservations/:reservationId/refunds", refundHandler.ListReservationRefunds)

		v1.POST("/charges",
			middleware.RateLimitMiddleware(rateLimits.Charges),
			transactionHandler.ExecuteCharge)

		refunds := v1.Group("/refunds")
		{
			refunds.POST("/validate", refundHandler.ValidateRefund)
			refunds.POST("",
				middleware.RateLimitMiddleware(rateLimits.Refunds),
				refundHandler.CreateRefund)
		}
	}

	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(rateLimits.Webhook))
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
	}

	return router
}
