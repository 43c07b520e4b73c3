package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"herway/ai"
	"herway/config"
	"herway/controllers"
	"herway/database"
	"herway/repositories"
	"herway/routes"
	"herway/routing"
	"herway/services"
	"herway/utils"
	"herway/websocket"
	"herway/workers"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize logger
	setupLogger(cfg)

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	defer database.Disconnect()

	// Initialize Redis
	redisClient := config.InitRedis(cfg)
	defer redisClient.Close()

	// Repositories
	incidentRepo := repositories.NewIncidentRepository(db)
	guardianRepo := repositories.NewGuardianRepository(db)
	statusCache := repositories.NewStatusCache(redisClient, cfg.StatusTTL, cfg.RouteCacheTTL)

	// Guardian delivery runs on the notification worker pool
	senders := config.InitNotificationSenders(context.Background(), cfg)
	workerConfig := workers.DefaultNotificationWorkerConfig()
	if cfg.NotificationWorkers > 0 {
		workerConfig.WorkerCount = cfg.NotificationWorkers
	}
	notificationWorker := workers.NewNotificationWorker(services.NewGuardianDelivery(senders), workerConfig)
	guardianNotifier := services.NewGuardianNotifier(guardianRepo, notificationWorker)

	// The hub gets its inbound handler once the services exist
	hub := websocket.NewHub(nil, cfg.AllowedOrigins)

	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	deps := services.SafetyServiceDeps{
		Incidents:   incidentRepo,
		Status:      statusCache,
		Broadcaster: hub,
		Guardians:   guardianNotifier,
	}
	var hazards services.HazardDetector
	var scorer services.SafetyScorer
	if aiClient.Configured() {
		deps.Summarizer = aiClient
		deps.Confirmer = aiClient
		hazards = aiClient
		scorer = aiClient
	} else {
		logrus.Warn("LLM provider not configured; summaries, distress confirmation and hazard analysis are disabled")
	}

	safetyService := services.NewSafetyService(cfg.SafetyConfig(), deps)
	guardianService := services.NewGuardianService(guardianRepo, safetyService, statusCache)

	var router services.Router
	if cfg.HereAPIKey != "" {
		router = routing.NewHereClient(routing.HereConfig{APIKey: cfg.HereAPIKey, BaseURL: cfg.HereBaseURL})
	} else {
		logrus.Warn("HERE_API_KEY not set; route planning is disabled")
	}
	routeService := services.NewRouteService(router, statusCache, hazards, scorer)

	hub.SetHandler(services.NewSocketHandler(safetyService, guardianService, statusCache))
	go hub.Run()

	// Background workers
	cleanupConfig := workers.DefaultCleanupWorkerConfig()
	cleanupConfig.DashboardIdleTTL = cfg.DashboardIdleTTL
	cleanupConfig.CheckInRetentionDays = cfg.CheckInRetentionDays
	cleanupWorker := workers.NewCleanupWorker(safetyService, incidentRepo, cleanupConfig)

	if err := notificationWorker.Start(); err != nil {
		logrus.Fatal("Failed to start notification worker: ", err)
	}
	if err := cleanupWorker.Start(); err != nil {
		logrus.Fatal("Failed to start cleanup worker: ", err)
	}

	// Setup routes
	engine := routes.SetupRoutes(cfg, redisClient, utils.NewJWTService(cfg.JWTSecret, cfg.JWTTokenTTL), &routes.Controllers{
		Safety:    controllers.NewSafetyController(safetyService),
		SOS:       controllers.NewSOSController(safetyService, guardianService),
		Guardian:  controllers.NewGuardianController(guardianService),
		Route:     controllers.NewRouteController(routeService),
		WebSocket: controllers.NewWebSocketController(hub),
		Health:    controllers.NewHealthController(cfg.Version, healthChecks(redisClient), hub, safetyService.DashboardCount),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        engine,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in goroutine
	go func() {
		logrus.Info("Her-Way server starting on port ", cfg.Port)
		logrus.Info("WebSocket endpoint: /ws")
		logrus.Info("Health Check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	// Stop the flows before draining the alert queue
	hub.Shutdown()
	safetyService.Shutdown(ctx)

	var g errgroup.Group
	g.Go(notificationWorker.Stop)
	g.Go(cleanupWorker.Stop)
	if err := g.Wait(); err != nil {
		logrus.Error("Worker shutdown error: ", err)
	}

	logrus.Info("Server exited")
}

func healthChecks(redisClient *redis.Client) map[string]controllers.HealthCheck {
	return map[string]controllers.HealthCheck{
		"mongodb": database.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
