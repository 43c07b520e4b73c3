package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"herway/metrics"
	"herway/models"
	"herway/utils"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for client send channel
	sendBufferSize = 256

	// Time allowed for a request to reach the safety services
	requestTimeout = 10 * time.Second
)

type Client struct {
	conn *websocket.Conn
	hub  *Hub

	userID       string
	userName     string
	connectionID string
	connectedAt  time.Time
	ipAddress    string
	userAgent    string

	// Encoded outbound frames. Closed by the hub on unregister.
	send   chan []byte
	mu     sync.Mutex
	closed bool

	// 100 requests per minute with a small burst
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, r *http.Request, userID, userName string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:         conn,
		hub:          hub,
		userID:       userID,
		userName:     userName,
		connectionID: utils.GenerateUUID(),
		connectedAt:  time.Now(),
		ipAddress:    getClientIP(r),
		userAgent:    r.UserAgent(),
		send:         make(chan []byte, sendBufferSize),
		limiter:      rate.NewLimiter(rate.Every(time.Minute/100), 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.cancel()
		c.conn.Close()
		logrus.Infof("Client disconnected: %s (%s)", c.userID, c.connectionID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error for user %s: %v", c.userID, err)
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.RateLimitedTotal.WithLabelValues("ws_frames").Inc()
			c.sendError("", models.WSErrorRateLimit, "Rate limit exceeded")
			continue
		}

		c.handleMessage(messageData)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.Errorf("Write error for user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.Warnf("Ping failed for user %s, disconnecting", c.userID)
				return
			}
		}
	}
}

func (c *Client) handleMessage(messageData []byte) {
	var request models.WSRequest
	if err := json.Unmarshal(messageData, &request); err != nil {
		c.sendError("", models.WSErrorInvalidMessage, "Invalid message format")
		return
	}

	switch request.Type {
	case models.WSRequestPing:
		c.sendFrame(models.WSMessage{
			Type:      models.WSTypePong,
			RequestID: request.RequestID,
			Timestamp: time.Now(),
		})
	case models.WSRequestVoiceTranscript:
		c.handleVoiceTranscript(request)
	case models.WSRequestChatMessage:
		c.handleChatMessage(request)
	case models.WSRequestStatus:
		c.handleStatus(request)
	case models.WSRequestWatch:
		c.handleWatch(request)
	case models.WSRequestUnwatch:
		c.handleUnwatch(request)
	default:
		c.sendError(request.RequestID, models.WSErrorInvalidMessage, "Unknown message type")
	}
}

func (c *Client) handleVoiceTranscript(request models.WSRequest) {
	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := unmarshalData(request.Data, &req); err != nil || strings.TrimSpace(req.Transcript) == "" {
		c.sendError(request.RequestID, models.WSErrorInvalidMessage, "Transcript required")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	result, err := c.hub.handler.VoiceTranscript(ctx, c.userID, req.Transcript)
	c.reply(request.RequestID, result, err)
}

func (c *Client) handleChatMessage(request models.WSRequest) {
	var req struct {
		Text string `json:"text"`
	}
	if err := unmarshalData(request.Data, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.sendError(request.RequestID, models.WSErrorInvalidMessage, "Message text required")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	result, err := c.hub.handler.ChatMessage(ctx, c.userID, req.Text)
	c.reply(request.RequestID, result, err)
}

// handleStatus returns the caller's own status, or a watched user's when
// the caller is one of their guardians.
func (c *Client) handleStatus(request models.WSRequest) {
	target := c.userID
	if id, ok := request.Data["userId"].(string); ok && id != "" {
		target = id
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	if !c.authorized(ctx, request.RequestID, target) {
		return
	}

	result, err := c.hub.handler.Status(ctx, target)
	c.reply(request.RequestID, result, err)
}

func (c *Client) handleWatch(request models.WSRequest) {
	target, ok := request.Data["userId"].(string)
	if !ok || target == "" {
		c.sendError(request.RequestID, models.WSErrorInvalidMessage, "User ID required")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	if !c.authorized(ctx, request.RequestID, target) {
		return
	}

	c.hub.watch(c, target)
	logrus.WithFields(logrus.Fields{"guardian": c.userID, "user": target}).Info("Guardian watching user")

	status, err := c.hub.handler.Status(ctx, target)
	if err != nil {
		logrus.WithField("user", target).Warnf("Failed to load status for watcher: %v", err)
		status = nil
	}
	c.reply(request.RequestID, map[string]interface{}{"watching": target, "status": status}, nil)
}

func (c *Client) handleUnwatch(request models.WSRequest) {
	target, ok := request.Data["userId"].(string)
	if !ok || target == "" {
		c.sendError(request.RequestID, models.WSErrorInvalidMessage, "User ID required")
		return
	}

	c.hub.unwatch(c, target)
	c.reply(request.RequestID, map[string]interface{}{"watching": nil, "userId": target}, nil)
}

func (c *Client) authorized(ctx context.Context, requestID, target string) bool {
	if target == c.userID {
		return true
	}
	allowed, err := c.hub.handler.CanWatch(ctx, c.userID, target)
	if err != nil {
		c.sendError(requestID, models.WSErrorFailed, "Failed to verify guardian")
		return false
	}
	if !allowed {
		c.sendError(requestID, models.WSErrorForbidden, "Not a guardian of this user")
		return false
	}
	return true
}

func (c *Client) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, requestTimeout)
}

func (c *Client) reply(requestID string, data interface{}, err error) {
	if err != nil {
		message := "Request failed"
		if serviceErr, ok := utils.GetServiceError(utils.FromSafetyError(err)); ok {
			message = serviceErr.Message
		}
		c.sendError(requestID, models.WSErrorFailed, message)
		return
	}
	c.sendFrame(utils.WSSuccessResponse(requestID, data))
}

func (c *Client) sendError(requestID, code, message string) {
	response := utils.WSErrorResponse(requestID, message)
	response.Data = map[string]string{"code": code}
	c.sendFrame(response)
}

func (c *Client) sendFrame(frame interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logrus.Errorf("Failed to encode frame for %s: %v", c.userID, err)
		return
	}
	c.enqueue(payload)
}

// enqueue drops the frame when the buffer is full or the client is gone.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		logrus.Warnf("Send channel full for user %s", c.userID)
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
