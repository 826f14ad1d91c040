package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/coinduel/backend/internal/api"
	"github.com/coinduel/backend/internal/config"
	"github.com/coinduel/backend/internal/database"
	"github.com/coinduel/backend/internal/events"
	"github.com/coinduel/backend/internal/game"
	"github.com/coinduel/backend/internal/migrations"
	"github.com/coinduel/backend/internal/payment"
	"github.com/coinduel/backend/internal/redis"
	"github.com/coinduel/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Initialize Razorpay client (if configured)
	if paymentClient := payment.NewClient(cfg); paymentClient != nil {
		payment.SetDefault(paymentClient)
		log.Printf("[PAYMENT] Razorpay client initialized (key=%s)", cfg.RazorpayKeyID)
	} else {
		log.Printf("[PAYMENT] Razorpay not configured - deposits disabled")
	}

	// Game service and background workers
	notifier := events.NewNotifier(rdb)
	svc := game.NewService(db, cfg, notifier)
	svc.StartQueueExpiryWorker(context.Background())
	svc.StartRoundWorker(context.Background())

	// WebSocket hub and Redis event fan-out
	hub := ws.NewHub()
	go hub.Run()
	ws.StartEventSubscriber(context.Background(), rdb, hub)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, db, cfg, svc, hub)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting CoinDuel server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
