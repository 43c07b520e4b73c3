package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"herway/safety"
)

// Incident is the persisted record of one SOS session.
type Incident struct {
	ID                 primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	UserID             string                 `json:"userId" bson:"userId"`
	SessionID          string                 `json:"sessionId" bson:"sessionId"`
	Source             string                 `json:"source" bson:"source"`
	StartedAt          time.Time              `json:"startedAt" bson:"startedAt"`
	EndedAt            time.Time              `json:"endedAt" bson:"endedAt"`
	DurationSeconds    int64                  `json:"durationSeconds" bson:"durationSeconds"`
	Transcript         []IncidentMessage      `json:"transcript" bson:"transcript"`
	Recordings         []string               `json:"recordings,omitempty" bson:"recordings,omitempty"`
	Photos             []string               `json:"photos,omitempty" bson:"photos,omitempty"`
	CameraPermission   string                 `json:"cameraPermission" bson:"cameraPermission"`
	LocationPermission string                 `json:"locationPermission" bson:"locationPermission"`
	LastPosition       *IncidentPosition      `json:"lastPosition,omitempty" bson:"lastPosition,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt          time.Time              `json:"createdAt" bson:"createdAt"`
}

type IncidentMessage struct {
	ID            string    `json:"id" bson:"id"`
	Author        string    `json:"author" bson:"author"`
	Text          string    `json:"text" bson:"text"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	IsAIGenerated bool      `json:"isAIGenerated" bson:"isAIGenerated"`
}

type IncidentPosition struct {
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// NewIncident converts a closed session into its persisted form.
func NewIncident(userID string, s safety.SessionSnapshot) *Incident {
	now := time.Now()
	inc := &Incident{
		UserID:             userID,
		SessionID:          s.ID,
		Source:             string(s.Source),
		EndedAt:            now,
		Transcript:         make([]IncidentMessage, 0, len(s.Transcript)),
		Recordings:         s.Recordings,
		Photos:             s.Photos,
		CameraPermission:   string(s.CameraPermission),
		LocationPermission: string(s.LocationPermission),
		CreatedAt:          now,
	}
	if s.StartedAt != nil {
		inc.StartedAt = *s.StartedAt
	}
	if s.EndedAt != nil {
		inc.EndedAt = *s.EndedAt
	}
	if !inc.StartedAt.IsZero() {
		inc.DurationSeconds = int64(inc.EndedAt.Sub(inc.StartedAt).Seconds())
	}
	for _, m := range s.Transcript {
		inc.Transcript = append(inc.Transcript, IncidentMessage{
			ID:            m.ID,
			Author:        m.Author,
			Text:          m.Text,
			Timestamp:     m.Timestamp,
			IsAIGenerated: m.IsAIGenerated,
		})
	}
	if s.LastPosition != nil {
		inc.LastPosition = &IncidentPosition{
			Latitude:  s.LastPosition.Lat,
			Longitude: s.LastPosition.Lng,
			Timestamp: s.LastPosition.At,
		}
	}
	return inc
}

// Check-in outcomes
const (
	CheckInOutcomeSafe    = "safe"
	CheckInOutcomeMissed  = "missed"
	CheckInOutcomeStopped = "stopped"
)

// CheckInLog records how a safety check-in or trip prompt ended.
type CheckInLog struct {
	ID      primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID  string             `json:"userId" bson:"userId"`
	Outcome string             `json:"outcome" bson:"outcome"`
	Source  string             `json:"source" bson:"source"`
	At      time.Time          `json:"at" bson:"at"`
}

type IncidentHistoryResponse struct {
	Incidents []Incident   `json:"incidents"`
	CheckIns  []CheckInLog `json:"checkIns,omitempty"`
}
