package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Guardian is a trusted contact who is told when the user needs help.
type Guardian struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         string             `json:"userId" bson:"userId"`
	GuardianUserID string             `json:"guardianUserId,omitempty" bson:"guardianUserId,omitempty"`
	Name           string             `json:"name" bson:"name"`
	Relation       string             `json:"relation,omitempty" bson:"relation,omitempty"`
	Phone          string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Email          string             `json:"email,omitempty" bson:"email,omitempty"`
	PushToken      string             `json:"-" bson:"pushToken,omitempty"`
	Channels       GuardianChannels   `json:"channels" bson:"channels"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type GuardianChannels struct {
	SMS   bool `json:"sms" bson:"sms"`
	Push  bool `json:"push" bson:"push"`
	Email bool `json:"email" bson:"email"`
}

type CreateGuardianRequest struct {
	Name           string            `json:"name" validate:"required,min=1,max=80"`
	Relation       string            `json:"relation,omitempty" validate:"max=40"`
	Phone          string            `json:"phone,omitempty" validate:"omitempty,phone"`
	Email          string            `json:"email,omitempty" validate:"omitempty,email"`
	PushToken      string            `json:"pushToken,omitempty"`
	GuardianUserID string            `json:"guardianUserId,omitempty"`
	Channels       *GuardianChannels `json:"channels,omitempty"`
}

// GuardianAlert is one message queued for delivery to a guardian.
type GuardianAlert struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Guardian   Guardian          `json:"guardian"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	EventType  string            `json:"eventType"`
	Data       map[string]string `json:"data,omitempty"`
	Attempts   int               `json:"attempts"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}
