package models

import (
	"time"
)

// WebSocket Message Types
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	UserID    string      `json:"userId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
}

// WSSafetyEvent carries a state machine event to the user's own devices
// and to guardians watching the user.
type WSSafetyEvent struct {
	UserID    string      `json:"userId"`
	Event     interface{} `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
}

type WSConnectionStatus struct {
	UserID       string    `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// WebSocket Response Types
type WSResponse struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WebSocket Request Types
type WSRequest struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

const (
	// Outbound message types
	WSTypeSafetyEvent      = "safety_event"
	WSTypeGuardianEvent    = "guardian_event"
	WSTypeStatus           = "status"
	WSTypeConnectionStatus = "connection_status"
	WSTypePong             = "pong"
	WSTypeError            = "error"
	WSTypeSuccess          = "success"

	// Inbound request types
	WSRequestPing            = "ping"
	WSRequestVoiceTranscript = "voice_transcript"
	WSRequestChatMessage     = "chat_message"
	WSRequestStatus          = "status_request"
	WSRequestWatch           = "watch"
	WSRequestUnwatch         = "unwatch"

	// Connection states
	WSStatusConnected    = "connected"
	WSStatusDisconnected = "disconnected"

	// Error codes
	WSErrorInvalidMessage = "INVALID_MESSAGE"
	WSErrorRateLimit      = "RATE_LIMIT"
	WSErrorForbidden      = "FORBIDDEN"
	WSErrorFailed         = "REQUEST_FAILED"
)

// WebSocket Hub Stats
type WSHubStats struct {
	TotalConnections int       `json:"totalConnections"`
	ConnectedUsers   int       `json:"connectedUsers"`
	WatchedUsers     int       `json:"watchedUsers"`
	Watchers         int       `json:"watchers"` // guardian subscriptions across all rooms
	MessagesSent     int64     `json:"messagesSent"`
	StartedAt        time.Time `json:"startedAt"`
}
