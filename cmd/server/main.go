package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"teachback/internal/config"
	"teachback/internal/database"
	"teachback/internal/handlers"
	"teachback/internal/logging"
	"teachback/internal/middleware"
	"teachback/internal/services"
	"teachback/internal/session"
	"teachback/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Teachback Gateway...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	if cfg.JWTSecret == "" {
		if cfg.Environment == "production" {
			log.Fatal("❌ JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "supersecret"
		log.Println("⚠️  JWT_SECRET not set, using development default")
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to initialize auth: %v", err)
	}

	// MongoDB holds users and streak history
	mongoDB, err := database.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())
	log.Println("✅ MongoDB connected successfully")

	// The broker connection is process-wide; unreachable broker is fatal at
	// startup only, transient afterwards
	redisService, err := services.NewRedisService(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis broker: %v", err)
	}
	defer redisService.Close()

	registry := services.NewConnectionRegistry()
	metrics := services.InitMetrics(registry)
	statsService := services.NewStatsService(mongoDB)

	sessionManager := session.NewManager(cfg.SessionTick, cfg.ResponseDeadline, registry, statsService)
	sessionManager.OnStarted = func() {
		metrics.SessionsStarted.Inc()
	}
	sessionManager.OnEnded = func(reason session.EndReason) {
		metrics.SessionsEnded.WithLabelValues(string(reason)).Inc()
	}
	defer sessionManager.Stop()

	publisher := services.NewEventPublisher(redisService.Client(), cfg.ChatInputTopic, metrics)
	subscriber := services.NewEventSubscriber(
		redisService.Client(), registry, sessionManager,
		cfg.ChatOutputTopic, cfg.ChatScoreTopic,
		cfg.ConsumerGroup, cfg.ConsumerName,
		metrics,
	)

	subCtx, cancelSub := context.WithCancel(context.Background())
	defer cancelSub()
	go func() {
		if err := subscriber.Run(subCtx); err != nil {
			log.Fatalf("❌ Subscriber failed to start: %v", err)
		}
	}()

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Teachback Gateway v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("teachback")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// First line of defense on the HTTP surface; the socket has its own auth
	app.Use("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	// Handlers
	authHandler := handlers.NewAuthHandler(issuer, statsService)
	statsHandler := handlers.NewStatsHandler(statsService)
	healthHandler := handlers.NewHealthHandler(redisService, mongoDB, registry)
	wsHandler := handlers.NewWebSocketHandler(registry, publisher, sessionManager)

	// Routes
	app.Get("/health", healthHandler.Health)

	api := app.Group("/api")
	api.Post("/auth/token", authHandler.IssueToken)
	api.Get("/stats/leaderboard", statsHandler.Leaderboard)
	api.Get("/stats/history", middleware.RequireAuth(issuer), statsHandler.History)
	api.Get("/stats/summary", middleware.RequireAuth(issuer), statsHandler.Summary)
	api.Post("/stats/streak", middleware.RequireAuth(issuer), statsHandler.RecordStreak)

	// WebSocket route (requires auth; an unauthenticated upgrade is closed
	// before any registry mutation)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws/chat", middleware.RequireAuth(issuer))
	app.Get("/ws/chat", websocket.New(wsHandler.Handle))

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down...")
		cancelSub()
		sessionManager.Stop()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Printf("🌐 Gateway listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}
