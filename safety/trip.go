package safety

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type TripState string

const (
	TripIdle   TripState = "idle"
	TripActive TripState = "active"
	TripSafe   TripState = "safe"
)

type TripConfig struct {
	TotalSeconds    int
	ReminderSeconds int
	TickInterval    time.Duration

	// PromptSeconds, when positive, layers an "Are you still there?" check-in
	// on every reminder. The prompt escalates if it is missed.
	PromptSeconds int
}

func DefaultTripConfig() TripConfig {
	return TripConfig{
		TotalSeconds:    120,
		ReminderSeconds: 30,
		TickInterval:    DefaultTickInterval,
	}
}

// Position is the last location reported during a trip.
type Position struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	At  time.Time `json:"at"`
}

type TripSnapshot struct {
	State        TripState         `json:"state"`
	Destination  string            `json:"destination,omitempty"`
	Reminders    int               `json:"reminders"`
	LastPosition *Position         `json:"lastPosition,omitempty"`
	Countdown    CountdownSnapshot `json:"countdown"`
	Prompt       *CheckInSnapshot  `json:"prompt,omitempty"`
}

// TripMonitor watches a journey home. Running out the clock means the user
// arrived, so expiry never escalates on its own.
type TripMonitor struct {
	mu sync.Mutex

	cfg          TripConfig
	state        TripState
	session      uint64
	destination  string
	reminders    int
	lastPosition *Position
	countdown    *Countdown
	prompt       *CheckIn

	notifier Notifier
}

func NewTripMonitor(cfg TripConfig, notifier Notifier, escalator Escalator) *TripMonitor {
	t := &TripMonitor{
		cfg:      cfg,
		state:    TripIdle,
		notifier: notifierOrNop(notifier),
	}
	t.countdown = NewCountdown(
		WithTickInterval(cfg.TickInterval),
		WithTickHook(t.onTick),
		WithExpireHook(t.onExpire),
	)
	if cfg.PromptSeconds > 0 {
		t.prompt = NewCheckIn(CheckInConfig{
			TotalSeconds:   cfg.PromptSeconds,
			Mode:           CheckInSingle,
			EscalateOnMiss: true,
			TickInterval:   cfg.TickInterval,
			Source:         SourceTripPrompt,
			Prompt:         true,
		}, notifier, escalator)
	}
	return t
}

func (t *TripMonitor) Start(ctx context.Context, destination string) (TripSnapshot, error) {
	t.mu.Lock()
	if t.state != TripIdle {
		state := t.state
		t.mu.Unlock()
		return t.Snapshot(), fmt.Errorf("start trip in state %s: %w", state, ErrInvalidTransition)
	}
	session, err := t.countdown.Start(t.cfg.TotalSeconds)
	if err != nil {
		t.mu.Unlock()
		return t.Snapshot(), err
	}
	t.session = session
	t.state = TripActive
	t.destination = destination
	t.reminders = 0
	t.lastPosition = nil
	t.mu.Unlock()

	t.notifier.Notify(ctx, newEvent(EventTripStarted, SeverityInfo,
		"Follow Me Home Activated", "Your guardians can see your trip until you arrive."))
	return t.Snapshot(), nil
}

// ArrivedSafely ends an active trip before the timer runs out.
func (t *TripMonitor) ArrivedSafely(ctx context.Context) (TripSnapshot, error) {
	t.mu.Lock()
	if t.state != TripActive {
		state := t.state
		t.mu.Unlock()
		return t.Snapshot(), fmt.Errorf("arrive in state %s: %w", state, ErrInvalidTransition)
	}
	t.countdown.Stop()
	t.state = TripSafe
	t.mu.Unlock()

	t.closePrompt()
	t.notifier.Notify(ctx, newEvent(EventTripArrived, SeverityInfo,
		"You have arrived!", "Your guardians have been notified that you are safe."))
	return t.Snapshot(), nil
}

// Reset prepares a finished trip for the next one.
func (t *TripMonitor) Reset() error {
	t.mu.Lock()
	switch t.state {
	case TripIdle:
		t.mu.Unlock()
		return nil
	case TripActive:
		t.mu.Unlock()
		return fmt.Errorf("reset trip in state %s: %w", TripActive, ErrInvalidTransition)
	}
	t.countdown.Reset()
	t.state = TripIdle
	t.destination = ""
	t.mu.Unlock()

	if t.prompt != nil {
		t.prompt.Close()
		_ = t.prompt.Reset()
	}
	return nil
}

// RecordMovement stores the latest known position of an active trip.
func (t *TripMonitor) RecordMovement(lat, lng float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TripActive {
		return fmt.Errorf("record movement in state %s: %w", t.state, ErrInvalidTransition)
	}
	t.lastPosition = &Position{Lat: lat, Lng: lng, At: time.Now()}
	return nil
}

// ConfirmPrompt answers the "Are you still there?" prompt.
func (t *TripMonitor) ConfirmPrompt(ctx context.Context) error {
	if t.prompt == nil {
		return fmt.Errorf("trip prompt: %w", ErrInvalidTransition)
	}
	if _, err := t.prompt.MarkSafe(ctx); err != nil {
		return err
	}
	return t.prompt.Reset()
}

func (t *TripMonitor) Tick() bool {
	return t.countdown.Tick()
}

// Prompt returns the layered check-in, or nil when prompts are disabled.
func (t *TripMonitor) Prompt() *CheckIn {
	return t.prompt
}

func (t *TripMonitor) State() TripState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *TripMonitor) Snapshot() TripSnapshot {
	t.mu.Lock()
	snap := TripSnapshot{
		State:       t.state,
		Destination: t.destination,
		Reminders:   t.reminders,
	}
	if t.lastPosition != nil {
		pos := *t.lastPosition
		snap.LastPosition = &pos
	}
	t.mu.Unlock()

	snap.Countdown = t.countdown.Snapshot()
	if t.prompt != nil {
		ps := t.prompt.Snapshot()
		snap.Prompt = &ps
	}
	return snap
}

func (t *TripMonitor) Close() {
	t.mu.Lock()
	t.countdown.Stop()
	if t.state == TripActive {
		t.state = TripIdle
	}
	t.mu.Unlock()
	t.closePrompt()
}

func (t *TripMonitor) closePrompt() {
	if t.prompt != nil {
		t.prompt.Close()
	}
}

func (t *TripMonitor) onTick(session uint64, remaining int) {
	interval := t.cfg.ReminderSeconds
	if interval <= 0 || remaining <= 0 {
		return
	}

	t.mu.Lock()
	if session != t.session || t.state != TripActive {
		t.mu.Unlock()
		return
	}
	elapsed := t.cfg.TotalSeconds - remaining
	if elapsed%interval != 0 {
		t.mu.Unlock()
		return
	}
	t.reminders++
	t.mu.Unlock()

	ctx := context.Background()
	e := newEvent(EventTripReminder, SeverityInfo, "Are you still there?", "Tap to confirm you're okay.")
	e.Data = map[string]interface{}{"remainingSeconds": remaining}
	t.notifier.Notify(ctx, e)

	// The trip may have ended while the reminder was out. A prompt armed
	// after arrival would escalate a finished trip.
	if t.prompt == nil || !t.activeSession(session) || t.prompt.State() != CheckInIdle {
		return
	}
	_, _ = t.prompt.Start(ctx)
	if !t.activeSession(session) {
		t.closePrompt()
	}
}

func (t *TripMonitor) activeSession(session uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return session == t.session && t.state == TripActive
}

func (t *TripMonitor) onExpire(session uint64) {
	t.mu.Lock()
	if session != t.session || t.state != TripActive {
		t.mu.Unlock()
		return
	}
	t.state = TripSafe
	t.mu.Unlock()

	t.closePrompt()
	t.notifier.Notify(context.Background(), newEvent(EventTripArrived, SeverityInfo,
		"You have arrived!", "Your guardians have been notified that you are safe."))
}
