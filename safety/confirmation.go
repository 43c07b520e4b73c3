package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type ConfirmationState string

const (
	ConfirmationIdle     ConfirmationState = "idle"
	ConfirmationCounting ConfirmationState = "counting"
	ConfirmationExpired  ConfirmationState = "expired"
)

// ExpiryMode selects what an expired emergency confirmation does.
type ExpiryMode string

const (
	ExpiryEscalate ExpiryMode = "escalate"
	ExpiryClose    ExpiryMode = "close"
)

// Trigger is the gesture that armed the confirmation.
type Trigger string

const (
	TriggerPress Trigger = "press"
	TriggerHold  Trigger = "hold"
)

type ConfirmationConfig struct {
	TotalSeconds int
	Mode         ExpiryMode
	TickInterval time.Duration
}

func DefaultConfirmationConfig() ConfirmationConfig {
	return ConfirmationConfig{
		TotalSeconds: 10,
		Mode:         ExpiryEscalate,
		TickInterval: DefaultTickInterval,
	}
}

type ConfirmationSnapshot struct {
	State     ConfirmationState `json:"state"`
	Mode      ExpiryMode        `json:"mode"`
	Trigger   Trigger           `json:"trigger,omitempty"`
	Countdown CountdownSnapshot `json:"countdown"`
}

// Confirmation counts down after the SOS trigger and sends the alert unless
// the user confirms they are safe first.
type Confirmation struct {
	mu sync.Mutex

	cfg       ConfirmationConfig
	state     ConfirmationState
	trigger   Trigger
	session   uint64
	countdown *Countdown

	notifier  Notifier
	escalator Escalator
}

func NewConfirmation(cfg ConfirmationConfig, notifier Notifier, escalator Escalator) *Confirmation {
	if cfg.Mode == "" {
		cfg.Mode = ExpiryEscalate
	}
	f := &Confirmation{
		cfg:       cfg,
		state:     ConfirmationIdle,
		notifier:  notifierOrNop(notifier),
		escalator: escalator,
	}
	f.countdown = NewCountdown(
		WithTickInterval(cfg.TickInterval),
		WithExpireHook(f.onExpire),
	)
	return f
}

// Arm starts the confirmation countdown. Arming while already counting is a no-op.
func (f *Confirmation) Arm(ctx context.Context, trigger Trigger) (ConfirmationSnapshot, error) {
	if trigger == "" {
		trigger = TriggerPress
	}

	f.mu.Lock()
	if f.state == ConfirmationCounting {
		f.mu.Unlock()
		return f.Snapshot(), nil
	}
	session, err := f.countdown.Start(f.cfg.TotalSeconds)
	if err != nil {
		f.mu.Unlock()
		return f.Snapshot(), err
	}
	f.session = session
	f.state = ConfirmationCounting
	f.trigger = trigger
	f.mu.Unlock()

	f.notifier.Notify(ctx, f.event(EventConfirmationArmed, SeverityDestructive,
		"Confirming Emergency",
		fmt.Sprintf("An alert will be sent to authorities and your guardians in %d seconds.", f.cfg.TotalSeconds)))

	return f.Snapshot(), nil
}

// Cancel is the "I'm Safe" action. It only succeeds while counting and
// leaves the flow idle with a full countdown, ready to arm again.
func (f *Confirmation) Cancel(ctx context.Context) error {
	f.mu.Lock()
	if f.state != ConfirmationCounting {
		f.mu.Unlock()
		return fmt.Errorf("cancel confirmation in state %s: %w", f.state, ErrInvalidTransition)
	}
	f.countdown.Reset()
	f.state = ConfirmationIdle
	f.mu.Unlock()

	f.notifier.Notify(ctx, f.event(EventConfirmationCancelled, SeverityInfo,
		"Alert Cancelled", "Your emergency alert has been successfully cancelled."))
	return nil
}

// Tick advances the countdown by one second when automatic ticking is disabled.
func (f *Confirmation) Tick() bool {
	return f.countdown.Tick()
}

func (f *Confirmation) State() ConfirmationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Confirmation) Snapshot() ConfirmationSnapshot {
	f.mu.Lock()
	state, trigger := f.state, f.trigger
	f.mu.Unlock()

	return ConfirmationSnapshot{
		State:     state,
		Mode:      f.cfg.Mode,
		Trigger:   trigger,
		Countdown: f.countdown.Snapshot(),
	}
}

// Close stops any running countdown without emitting events.
func (f *Confirmation) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countdown.Stop()
	if f.state == ConfirmationCounting {
		f.state = ConfirmationIdle
	}
}

func (f *Confirmation) onExpire(session uint64) {
	f.mu.Lock()
	if session != f.session || f.state != ConfirmationCounting {
		f.mu.Unlock()
		return
	}
	f.state = ConfirmationExpired
	f.mu.Unlock()

	ctx := context.Background()
	f.notifier.Notify(ctx, f.event(EventAlertSent, SeverityDestructive,
		"Emergency Alert Sent!", "Authorities and your guardians have been notified."))

	if f.cfg.Mode != ExpiryEscalate || f.escalator == nil {
		return
	}
	if _, err := f.escalator.Escalate(ctx, SourceConfirmation); err != nil {
		logrus.Errorf("Emergency confirmation escalation failed: %v", err)
	}
}

func (f *Confirmation) event(t EventType, sev Severity, title, desc string) Event {
	e := newEvent(t, sev, title, desc)
	e.Source = SourceConfirmation
	return e
}
