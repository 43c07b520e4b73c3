package websocket

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Room holds the guardian connections watching one user.
type Room struct {
	UserID string

	clients map[*Client]bool
	mutex   sync.RWMutex

	createdAt    time.Time
	lastActivity time.Time
	messagesSent int64
}

func NewRoom(userID string) *Room {
	return &Room{
		UserID:       userID,
		clients:      make(map[*Client]bool),
		createdAt:    time.Now(),
		lastActivity: time.Now(),
	}
}

func (r *Room) AddClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if client == nil || r.clients[client] {
		return
	}
	r.clients[client] = true
	r.lastActivity = time.Now()

	logrus.Debugf("Guardian %s watching %s (Total: %d)", client.userID, r.UserID, len(r.clients))
}

func (r *Room) RemoveClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.clients[client] {
		return
	}
	delete(r.clients, client)
	r.lastActivity = time.Now()
}

// Broadcast queues an encoded frame for every watcher and returns how many
// accepted it.
func (r *Room) Broadcast(payload []byte) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sent := 0
	for client := range r.clients {
		if client.enqueue(payload) {
			sent++
		}
	}
	r.messagesSent += int64(sent)
	r.lastActivity = time.Now()
	return sent
}

func (r *Room) IsEmpty() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients) == 0
}

func (r *Room) GetClientCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}
