package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"herway/utils"
	"herway/websocket"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{
		hub: hub,
	}
}

// HandleWebSocket upgrades an authenticated request. Browsers cannot set
// headers on the handshake, so the auth middleware also accepts ?token=.
func (wsc *WebSocketController) HandleWebSocket(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := wsc.hub.Serve(c.Writer, c.Request, user.ID, user.Name); err != nil {
		logrus.WithField("user", user.ID).Warnf("WebSocket upgrade failed: %v", err)
		if !c.Writer.Written() {
			utils.BadRequestResponse(c, "WebSocket upgrade failed")
		}
		return
	}
}

// GetStats exposes hub counters.
func (wsc *WebSocketController) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, "WebSocket statistics", wsc.hub.Stats())
}
