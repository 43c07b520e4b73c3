package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"herway/models"
)

// SocketHandler answers the requests a client can make over its websocket.
type SocketHandler struct {
	safety    *SafetyService
	guardians *GuardianService
	status    StatusStore
}

func NewSocketHandler(safetyService *SafetyService, guardianService *GuardianService, status StatusStore) *SocketHandler {
	return &SocketHandler{safety: safetyService, guardians: guardianService, status: status}
}

func (h *SocketHandler) VoiceTranscript(ctx context.Context, userID, transcript string) (interface{}, error) {
	return h.safety.HandleVoiceCommand(ctx, User{ID: userID}, models.VoiceCommandRequest{Transcript: transcript})
}

func (h *SocketHandler) ChatMessage(ctx context.Context, userID, text string) (interface{}, error) {
	return h.safety.SendMessage(ctx, User{ID: userID}, models.SendMessageRequest{Text: text})
}

func (h *SocketHandler) Status(ctx context.Context, userID string) (interface{}, error) {
	return h.safety.LiveStatus(ctx, userID)
}

func (h *SocketHandler) CanWatch(ctx context.Context, watcherID, userID string) (bool, error) {
	return h.guardians.CanWatch(ctx, watcherID, userID)
}

func (h *SocketHandler) Presence(ctx context.Context, userID string, online bool) {
	if h.status == nil {
		return
	}
	if err := h.status.SetOnline(ctx, userID, online); err != nil {
		logrus.WithField("user", userID).Warnf("Failed to update presence: %v", err)
	}
}
