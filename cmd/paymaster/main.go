package main

import (
	"time"

	"github.com/mgh333114/chance-winner-hub-sub001/internal/handlers"
	"github.com/mgh333114/chance-winner-hub-sub001/internal/notifier"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/auth"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/config"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/database"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/monitoring"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/server"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("paymaster")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Paymaster (Payments API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	webhookSecret := config.RequireEnv("PAYMENT_WEBHOOK_SECRET")
	notifierURL := config.GetEnv("NOTIFIER_URL", "")
	referralThreshold := config.GetEnvInt("REFERRAL_THRESHOLD", 100)

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("paymaster", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("paymaster", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":           dbURL,
		"JWT_SECRET":             jwtSecret,
		"PAYMENT_WEBHOOK_SECRET": webhookSecret,
	}))
	if notifierURL != "" {
		healthChecker.AddCheck("notifier", monitoring.HTTPServiceHealthCheck("notifier", notifierURL+"/health"))
	}

	// Create custom payment metrics
	metrics := &handlers.PaymasterMetrics{
		WebhookEvents:     metricsCollector.NewCounter("payment_webhook_events_total", "Payment webhook events received", []string{"event_type", "status"}),
		SignatureFailures: metricsCollector.NewCounter("payment_signature_failures_total", "Webhook signature verification failures", []string{"reason"}),
		LedgerWrites:      metricsCollector.NewCounter("ledger_writes_total", "Transaction ledger write outcomes", []string{"outcome"}),
		Promotions:        metricsCollector.NewCounter("influencer_promotions_total", "Influencer promotion outcomes", []string{"outcome"}),
	}

	// Create database metrics
	metrics.DBQueries, metrics.DBDuration, metrics.DBConnections = metricsCollector.CreateDatabaseMetrics()

	// Notification client (optional; promotions proceed without it)
	var promotionNotifier handlers.Notifier
	if notifierURL != "" {
		promotionNotifier = notifier.NewClient(notifier.Config{
			BaseURL: notifierURL,
			APIKey:  config.GetEnv("NOTIFIER_API_KEY", ""),
			Timeout: 10 * time.Second,
			Logger:  logger,
		})
	} else {
		logger.Warn("NOTIFIER_URL not set, promotion notifications disabled")
	}

	// Initialize handlers
	handlers.Init(db, logger, metrics, handlers.Config{
		WebhookSecret:     webhookSecret,
		ReferralThreshold: referralThreshold,
	}, promotionNotifier)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "paymaster", healthChecker, metricsCollector)

	// API routes (root level - nginx adds /api/payments/ prefix)
	{
		// Webhook endpoint (signature-authenticated, no session auth)
		router.POST("/webhooks/payments", handlers.HandlePaymentWebhook)

		// Browser-origin endpoints
		router.POST("/promotion/check", handlers.CheckPromotion)
		router.POST("/merge", handlers.MergeAttributes)

		// Authentication required endpoints
		protected := router.Group("")
		protected.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			protected.GET("/transactions", handlers.GetTransactions)
			protected.GET("/profile", handlers.GetProfile)
		}
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("paymaster", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
