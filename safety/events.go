package safety

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventConfirmationArmed     EventType = "confirmation_armed"
	EventConfirmationCancelled EventType = "confirmation_cancelled"
	EventAlertSent             EventType = "alert_sent"

	EventCheckInStarted EventType = "checkin_started"
	EventCheckedIn      EventType = "checkin_safe"
	EventCheckInMissed  EventType = "checkin_missed"
	EventCheckInStopped EventType = "checkin_stopped"

	EventTripStarted  EventType = "trip_started"
	EventTripReminder EventType = "trip_reminder"
	EventTripArrived  EventType = "trip_arrived"

	EventSOSStarted          EventType = "sos_started"
	EventSOSEnded            EventType = "sos_ended"
	EventPermissionDenied    EventType = "permission_denied"
	EventMessageAppended     EventType = "message_appended"
	EventRecordingStarted    EventType = "recording_started"
	EventRecordingSaved      EventType = "recording_saved"
	EventPhotoCaptured       EventType = "photo_captured"
	EventVoiceControlChanged EventType = "voice_control_changed"
	EventVoiceCommand        EventType = "voice_command"
	EventHelpMessageSent     EventType = "help_message_sent"
	EventSummaryFailed       EventType = "summary_failed"

	EventDistressConfirmed EventType = "distress_confirmed"
	EventDistressClear     EventType = "distress_clear"
	EventDistressFailed    EventType = "distress_failed"

	EventError EventType = "error"
)

type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

// Source names the flow that caused an escalation.
type Source string

const (
	SourceManual       Source = "manual"
	SourceConfirmation Source = "confirmation"
	SourceCheckIn      Source = "checkin"
	SourceTripPrompt   Source = "trip_prompt"
	SourceDistress     Source = "distress"
)

// Event is a structured, presentation-agnostic notification emitted by the
// state machines. Rendering is left to whoever consumes it.
type Event struct {
	Type        EventType              `json:"type"`
	Severity    Severity               `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Source      Source                 `json:"source,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	At          time.Time              `json:"at"`
}

// GuardianFacing reports whether guardians should hear about the event.
func (e Event) GuardianFacing() bool {
	switch e.Type {
	case EventAlertSent, EventCheckInMissed, EventSOSStarted, EventSOSEnded,
		EventDistressConfirmed, EventHelpMessageSent:
		return true
	}
	return false
}

type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type NotifierFunc func(ctx context.Context, event Event)

func (f NotifierFunc) Notify(ctx context.Context, event Event) { f(ctx, event) }

// MultiNotifier delivers each event to every notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// LogNotifier writes events to logrus.
type LogNotifier struct {
	Fields logrus.Fields
}

func (l LogNotifier) Notify(_ context.Context, event Event) {
	entry := logrus.WithFields(l.Fields).WithFields(logrus.Fields{
		"event":  event.Type,
		"source": event.Source,
	})
	if event.Severity == SeverityDestructive {
		entry.Warn(event.Title)
		return
	}
	entry.Info(event.Title)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func newEvent(t EventType, sev Severity, title, description string) Event {
	return Event{
		Type:        t,
		Severity:    sev,
		Title:       title,
		Description: description,
		At:          time.Now(),
	}
}

// Escalator is the entry point into an active SOS session.
type Escalator interface {
	Escalate(ctx context.Context, source Source) (SessionSnapshot, error)
}
