package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"herway/controllers"
	"herway/middleware"
)

// SetupWebSocketRoutes mounts the socket endpoint. Auth accepts ?token= since
// browsers cannot set headers on the handshake.
func SetupWebSocketRoutes(router *gin.Engine, wsController *controllers.WebSocketController, auth *middleware.AuthMiddleware, redis *redis.Client) {
	router.GET("/ws", middleware.WebSocketRateLimit(redis), auth.RequireAuth(), wsController.HandleWebSocket)

	ws := router.Group("/api/v1/ws")
	ws.Use(auth.RequireAuth())
	ws.GET("/stats", wsController.GetStats)
}
