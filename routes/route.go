package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"herway/controllers"
	"herway/middleware"
)

// SetupRouteRoutes mounts route planning. These call paid providers and get
// their own per-user limit on top of the API limit.
func SetupRouteRoutes(router *gin.RouterGroup, routeController *controllers.RouteController, redis *redis.Client) {
	routes := router.Group("/routes")
	routes.Use(middleware.RouteRateLimit(redis))
	{
		routes.POST("/plan", routeController.PlanRoute)
		routes.POST("/hazards", routeController.DetectHazards)
		routes.POST("/safety-score", routeController.SafetyScore)
	}
}
