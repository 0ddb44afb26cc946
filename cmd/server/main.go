package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"kainan_app_echo/internal/handlers"
	appMiddleware "kainan_app_echo/internal/middleware"
	"kainan_app_echo/internal/services"
	"kainan_app_echo/internal/tasks"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migration
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	ctx := context.Background()

	// Intent store: in-process by default, Redis when running multiple
	// API instances behind one callback URL
	var intentStore services.IntentStore
	switch os.Getenv("INTENT_STORE") {
	case "redis":
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			log.Fatal("INTENT_STORE=redis requires REDIS_URL")
		}
		cache, err := services.NewRedisCache(redisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer cache.Close()
		intentStore = services.NewRedisIntentStore(cache)
	default:
		memStore := services.NewMemoryIntentStore()
		memStore.StartSweeper(ctx, services.IntentTTL)
		intentStore = memStore
	}

	webhookSecret := os.Getenv("XENDIT_CALLBACK_SECRET")
	if webhookSecret == "" {
		log.Println("Warning: XENDIT_CALLBACK_SECRET not set, webhook signatures cannot verify")
	}

	// Wire services
	ledger := services.NewTransactionLedger(db)
	provider := services.NewXenditService()
	paymentService := services.NewPaymentService(db, intentStore, ledger, provider)
	webhookService := services.NewWebhookService(db, intentStore, ledger, webhookSecret)

	// Register task handlers so admin tooling can enqueue them
	tasks.DefineTasks()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(db, paymentService)
	webhookHandler := handlers.NewWebhookHandler(db, webhookService)
	providerHandler := handlers.NewProviderHandler(db, provider)
	transactionHandler := handlers.NewTransactionHandler(db)

	// Provider callbacks authenticate by signature, not by user token
	e.POST("/api/webhooks/xendit", webhookHandler.HandleXenditCallback)

	// Client payment flow
	e.POST("/api/payments/intents", paymentHandler.CreateIntent)
	e.GET("/api/payments/intents/:correlationKey/status", paymentHandler.CheckIntentStatus)
	e.POST("/api/orders/from-intent", paymentHandler.PromoteOrder)
	e.POST("/api/orders/cash", paymentHandler.CreateCashOrder)

	// Operator/merchant routes require a Firebase bearer token
	api := e.Group("/api")
	api.Use(appMiddleware.RequireAuth(authClient))

	api.POST("/orders/:uuid/cash-collected", paymentHandler.MarkCashCollected)

	api.POST("/providers/register", providerHandler.RegisterProvider)
	api.GET("/providers/:id/status", providerHandler.GetProviderStatus)
	api.PUT("/providers/:id/payout-method", providerHandler.UpdatePayoutMethod)

	api.GET("/transactions", transactionHandler.ListTransactions)
	api.GET("/transactions/:invoiceId", transactionHandler.GetTransaction)
	api.GET("/providers/:id/remittances", transactionHandler.ListRemittances)

	api.GET("/webhooks/failed", webhookHandler.ListFailedCallbacks)
	api.POST("/webhooks/failed/:id/replay", webhookHandler.ReplayFailedCallback)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
