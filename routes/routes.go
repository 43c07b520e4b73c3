package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"herway/config"
	"herway/controllers"
	"herway/middleware"
	"herway/utils"
)

// Controllers groups every HTTP handler set the router mounts.
type Controllers struct {
	Safety    *controllers.SafetyController
	SOS       *controllers.SOSController
	Guardian  *controllers.GuardianController
	Route     *controllers.RouteController
	WebSocket *controllers.WebSocketController
	Health    *controllers.HealthController
}

// SetupRoutes builds the engine with global middleware, the public health
// and metrics endpoints, the websocket endpoint and the authenticated
// /api/v1 groups.
func SetupRoutes(cfg *config.Config, redis *redis.Client, jwtService *utils.JWTService, controllers *Controllers) *gin.Engine {
	router := gin.New()
	auth := middleware.NewAuthMiddleware(jwtService)

	setupGlobalMiddleware(router, cfg, redis)
	setupPublicRoutes(router, controllers)
	SetupWebSocketRoutes(router, controllers.WebSocket, auth, redis)
	setupAuthenticatedRoutes(router, controllers, auth, redis)

	router.NoRoute(func(c *gin.Context) {
		utils.NotFoundResponse(c, "Endpoint")
	})

	return router
}

func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config, redis *redis.Client) {
	if cfg.Environment == "development" {
		router.Use(middleware.DevelopmentLoggerMiddleware())
	} else {
		router.Use(middleware.DefaultLoggerMiddleware())
	}
	router.Use(middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger()).Handle())
	router.Use(middleware.CORSMiddleware(cfg.Environment, cfg.AllowedOrigins))
	router.Use(middleware.MetricsMiddleware())

	window := time.Duration(cfg.RateLimitWindow) * time.Minute
	router.Use(middleware.APIRateLimit(redis, cfg.RateLimitRequest, window))
}

func setupPublicRoutes(router *gin.Engine, controllers *Controllers) {
	router.GET("/health", controllers.Health.HealthCheck)
	router.GET("/health/detailed", controllers.Health.DetailedHealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func setupAuthenticatedRoutes(router *gin.Engine, controllers *Controllers, auth *middleware.AuthMiddleware, redis *redis.Client) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())

	SetupSafetyRoutes(api, controllers.Safety)
	SetupSOSRoutes(api, controllers.SOS)
	SetupGuardianRoutes(api, controllers.Guardian)
	SetupRouteRoutes(api, controllers.Route, redis)
}
