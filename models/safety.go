package models

import "herway/safety"

// Emergency confirmation
type ArmEmergencyRequest struct {
	Trigger string `json:"trigger,omitempty" validate:"omitempty,oneof=press hold"`
}

// Follow-me-home
type StartTripRequest struct {
	Destination string `json:"destination,omitempty" validate:"max=200"`
}

type MovementRequest struct {
	Latitude  float64 `json:"latitude" validate:"coordinate"`
	Longitude float64 `json:"longitude" validate:"coordinate"`
}

// CapabilityGrants is what the device reported when the user answered the
// camera, location and speech permission prompts.
type CapabilityGrants struct {
	Camera   *bool `json:"camera,omitempty"`
	Location *bool `json:"location,omitempty"`
	Speech   *bool `json:"speech,omitempty"`
}

// SOS session
type EscalateRequest struct {
	Source       string           `json:"source,omitempty" validate:"omitempty,oneof=manual confirmation checkin trip_prompt distress"`
	Capabilities CapabilityGrants `json:"capabilities"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// GuardianMessageRequest is posted by a guardian into a protected user's session.
type GuardianMessageRequest struct {
	UserID string `json:"userId" validate:"required"`
	Author string `json:"author,omitempty" validate:"max=80"`
	Text   string `json:"text" validate:"required,max=2000"`
	// QuickAction sends a canned reply instead of Text.
	QuickAction string `json:"quickAction,omitempty" validate:"omitempty,oneof=on_my_way"`
}

type VoiceCommandRequest struct {
	Transcript string `json:"transcript" validate:"required,max=500"`
}

type AnalyzeDistressRequest struct {
	AudioDataURI  string     `json:"audioDataUri" validate:"required"`
	Accelerometer [3]float64 `json:"accelerometer"`
	Gyroscope     [3]float64 `json:"gyroscope"`
}

func (r AnalyzeDistressRequest) Sample() safety.SensorSample {
	return safety.SensorSample{
		AudioDataURI:  r.AudioDataURI,
		Accelerometer: r.Accelerometer,
		Gyroscope:     r.Gyroscope,
	}
}

// Toggle responses
type ToggleResponse struct {
	Enabled bool                   `json:"enabled"`
	Session safety.SessionSnapshot `json:"session"`
}

type PhotoResponse struct {
	Reference string                 `json:"reference"`
	Session   safety.SessionSnapshot `json:"session"`
}

type VoiceCommandResponse struct {
	Command    string                 `json:"command,omitempty"`
	Recognised bool                   `json:"recognised"`
	Session    safety.SessionSnapshot `json:"session"`
}

type EndSessionResponse struct {
	Ended   bool                   `json:"ended"`
	Session safety.SessionSnapshot `json:"session"`
}

// SafetyStatus is the live state of one user as cached for guardians.
type SafetyStatus struct {
	UserID         string               `json:"userId"`
	UserName       string               `json:"userName,omitempty"`
	SOSActive      bool                 `json:"sosActive"`
	SOSSessionID   string               `json:"sosSessionId,omitempty"`
	TripState      safety.TripState     `json:"tripState"`
	Destination    string               `json:"destination,omitempty"`
	CheckInState   safety.CheckInState  `json:"checkInState"`
	Confirmation   string               `json:"confirmationState"`
	LastPosition   *safety.Position     `json:"lastPosition,omitempty"`
	LastEvent      *safety.Event        `json:"lastEvent,omitempty"`
	UpdatedAt      int64                `json:"updatedAt"`
	DistressState  safety.DistressState `json:"distressState,omitempty"`
	IsRecording    bool                 `json:"isRecording"`
	IsNightVision  bool                 `json:"isNightVisionOn"`
	VoiceControlOn bool                 `json:"isVoiceControlOn"`
}

// ProtectedUserStatus is one row of the guardian dashboard.
type ProtectedUserStatus struct {
	UserID   string        `json:"userId"`
	Name     string        `json:"name"`
	Relation string        `json:"relation,omitempty"`
	Status   *SafetyStatus `json:"status,omitempty"`
	Online   bool          `json:"online"`
}
