package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"herway/metrics"
	"herway/models"
)

// InboundHandler answers the requests clients send over their socket.
type InboundHandler interface {
	VoiceTranscript(ctx context.Context, userID, transcript string) (interface{}, error)
	ChatMessage(ctx context.Context, userID, text string) (interface{}, error)
	Status(ctx context.Context, userID string) (interface{}, error)
	CanWatch(ctx context.Context, watcherID, userID string) (bool, error)
	Presence(ctx context.Context, userID string, online bool)
}

type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Every device a user has connected
	userClients map[string]map[*Client]bool

	// Guardian rooms keyed by the watched user
	rooms map[string]*Room

	register   chan *Client
	unregister chan *Client
	broadcast  chan BroadcastMessage

	handler  InboundHandler
	upgrader websocket.Upgrader

	messagesSent int64
	startedAt    time.Time

	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// BroadcastMessage is a frame addressed either to a user's own devices or
// to the guardians watching that user.
type BroadcastMessage struct {
	UserID   string
	Watchers bool
	Message  models.WSMessage
}

func NewHub(handler InboundHandler, allowedOrigins []string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		rooms:       make(map[string]*Room),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan BroadcastMessage, 512),
		handler:     handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetHandler replaces the inbound handler. Call it before Run.
func (h *Hub) SetHandler(handler InboundHandler) {
	h.handler = handler
}

func (h *Hub) Run() {
	logrus.Info("WebSocket Hub starting...")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-h.ctx.Done():
			logrus.Info("WebSocket Hub shutting down...")
			return
		}
	}
}

// Serve upgrades an authenticated request and starts the client's pumps.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID, userName string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(h, conn, r, userID, userName)
	if !h.Register(client) {
		conn.Close()
		return context.Canceled
	}

	go client.WritePump()
	go client.ReadPump()
	return nil
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	devices := h.userClients[client.userID]
	if devices == nil {
		devices = make(map[*Client]bool)
		h.userClients[client.userID] = devices
	}
	devices[client] = true
	firstDevice := len(devices) == 1
	total := len(h.clients)
	h.mutex.Unlock()

	metrics.WebSocketConnections.Inc()

	if firstDevice {
		h.presence(client.userID, true)
	}

	client.sendFrame(models.WSMessage{
		Type: models.WSTypeConnectionStatus,
		Data: models.WSConnectionStatus{
			UserID:       client.userID,
			ConnectionID: client.connectionID,
			Status:       models.WSStatusConnected,
			Timestamp:    time.Now(),
		},
		Timestamp: time.Now(),
	})

	logrus.Infof("Client registered: %s (Total: %d)", client.userID, total)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}

	delete(h.clients, client)
	lastDevice := false
	if devices := h.userClients[client.userID]; devices != nil {
		delete(devices, client)
		if len(devices) == 0 {
			delete(h.userClients, client.userID)
			lastDevice = true
		}
	}

	for userID, room := range h.rooms {
		room.RemoveClient(client)
		if room.IsEmpty() {
			delete(h.rooms, userID)
		}
	}
	total := len(h.clients)
	h.mutex.Unlock()

	client.close()
	metrics.WebSocketConnections.Dec()

	if lastDevice {
		h.presence(client.userID, false)
	}

	logrus.Infof("Client unregistered: %s (Total: %d)", client.userID, total)
}

func (h *Hub) presence(userID string, online bool) {
	if h.handler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()
	h.handler.Presence(ctx, userID, online)
}

func (h *Hub) deliver(msg BroadcastMessage) {
	payload, err := json.Marshal(msg.Message)
	if err != nil {
		logrus.Errorf("Failed to encode %s frame for %s: %v", msg.Message.Type, msg.UserID, err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var sent int
	if msg.Watchers {
		if room := h.rooms[msg.UserID]; room != nil {
			sent = room.Broadcast(payload)
		}
	} else {
		for client := range h.userClients[msg.UserID] {
			if client.enqueue(payload) {
				sent++
			}
		}
	}
	atomic.AddInt64(&h.messagesSent, int64(sent))
}

func (h *Hub) enqueueBroadcast(msg BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		logrus.Warnf("Broadcast channel full, dropping %s frame for %s", msg.Message.Type, msg.UserID)
	}
}

// SendToUser pushes a frame to every device the user has connected.
func (h *Hub) SendToUser(userID, msgType string, data interface{}) {
	h.enqueueBroadcast(BroadcastMessage{
		UserID: userID,
		Message: models.WSMessage{
			Type:      msgType,
			Data:      data,
			UserID:    userID,
			Timestamp: time.Now(),
		},
	})
}

// SendToWatchers pushes a frame to the guardians watching the user.
func (h *Hub) SendToWatchers(userID, msgType string, data interface{}) {
	h.enqueueBroadcast(BroadcastMessage{
		UserID:   userID,
		Watchers: true,
		Message: models.WSMessage{
			Type:      msgType,
			Data:      data,
			UserID:    userID,
			Timestamp: time.Now(),
		},
	})
}

func (h *Hub) watch(client *Client, userID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return
	}
	room, ok := h.rooms[userID]
	if !ok {
		room = NewRoom(userID)
		h.rooms[userID] = room
	}
	room.AddClient(client)
}

func (h *Hub) unwatch(client *Client, userID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, ok := h.rooms[userID]; ok {
		room.RemoveClient(client)
		if room.IsEmpty() {
			delete(h.rooms, userID)
		}
	}
}

func (h *Hub) IsUserOnline(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.userClients[userID]) > 0
}

func (h *Hub) Stats() models.WSHubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	watchers := 0
	for _, room := range h.rooms {
		watchers += room.GetClientCount()
	}

	return models.WSHubStats{
		TotalConnections: len(h.clients),
		ConnectedUsers:   len(h.userClients),
		WatchedUsers:     len(h.rooms),
		Watchers:         watchers,
		MessagesSent:     atomic.LoadInt64(&h.messagesSent),
		StartedAt:        h.startedAt,
	}
}

func (h *Hub) Shutdown() {
	logrus.Info("Shutting down WebSocket Hub...")

	h.cancel()

	h.mutex.Lock()
	for client := range h.clients {
		client.cancel()
		client.conn.Close()
	}
	h.mutex.Unlock()

	logrus.Info("WebSocket Hub shutdown complete")
}
