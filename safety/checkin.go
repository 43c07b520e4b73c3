package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type CheckInState string

const (
	CheckInIdle    CheckInState = "idle"
	CheckInRunning CheckInState = "running"
	CheckInSafe    CheckInState = "safe"
	CheckInAlerted CheckInState = "alerted"
)

// CheckInMode decides what MarkSafe does.
type CheckInMode string

const (
	// CheckInRepeating re-arms the same cycle on MarkSafe.
	CheckInRepeating CheckInMode = "repeating"
	// CheckInSingle ends in the terminal safe state; Reset is needed to start again.
	CheckInSingle CheckInMode = "single"
)

type CheckInConfig struct {
	TotalSeconds   int
	Mode           CheckInMode
	EscalateOnMiss bool
	TickInterval   time.Duration

	// Source is reported to the escalator when the check-in is missed.
	Source Source
	// Prompt marks the check-in as the "Are you still there?" prompt of a
	// trip, which changes the wording of its events.
	Prompt bool
}

func DefaultCheckInConfig() CheckInConfig {
	return CheckInConfig{
		TotalSeconds:   30,
		Mode:           CheckInSingle,
		EscalateOnMiss: true,
		TickInterval:   DefaultTickInterval,
		Source:         SourceCheckIn,
	}
}

type CheckInSnapshot struct {
	State     CheckInState      `json:"state"`
	Mode      CheckInMode       `json:"mode"`
	Cycles    int               `json:"cycles"`
	Countdown CountdownSnapshot `json:"countdown"`
}

// CheckIn asks the user to confirm they are safe before a countdown runs out.
// A missed check-in alerts guardians and can escalate to SOS.
type CheckIn struct {
	mu sync.Mutex

	cfg       CheckInConfig
	state     CheckInState
	session   uint64
	cycles    int
	countdown *Countdown

	notifier  Notifier
	escalator Escalator
}

func NewCheckIn(cfg CheckInConfig, notifier Notifier, escalator Escalator) *CheckIn {
	if cfg.Mode == "" {
		cfg.Mode = CheckInSingle
	}
	if cfg.Source == "" {
		cfg.Source = SourceCheckIn
	}
	ci := &CheckIn{
		cfg:       cfg,
		state:     CheckInIdle,
		notifier:  notifierOrNop(notifier),
		escalator: escalator,
	}
	ci.countdown = NewCountdown(
		WithTickInterval(cfg.TickInterval),
		WithExpireHook(ci.onExpire),
	)
	return ci
}

// Start arms a check-in from idle.
func (ci *CheckIn) Start(ctx context.Context) (CheckInSnapshot, error) {
	ci.mu.Lock()
	if ci.state != CheckInIdle {
		state := ci.state
		ci.mu.Unlock()
		return ci.Snapshot(), fmt.Errorf("start check-in in state %s: %w", state, ErrInvalidTransition)
	}
	if err := ci.armLocked(); err != nil {
		ci.mu.Unlock()
		return ci.Snapshot(), err
	}
	ci.mu.Unlock()

	title := "Check-in Started"
	desc := fmt.Sprintf("Please check in within %d seconds.", ci.cfg.TotalSeconds)
	if ci.cfg.Prompt {
		title = "Are you still there?"
		desc = "Please confirm you are safe."
	}
	ci.notifier.Notify(ctx, ci.event(EventCheckInStarted, SeverityInfo, title, desc))
	return ci.Snapshot(), nil
}

// MarkSafe records a successful check-in.
func (ci *CheckIn) MarkSafe(ctx context.Context) (CheckInSnapshot, error) {
	ci.mu.Lock()
	if ci.state != CheckInRunning {
		state := ci.state
		ci.mu.Unlock()
		return ci.Snapshot(), fmt.Errorf("mark safe in state %s: %w", state, ErrInvalidTransition)
	}

	if ci.cfg.Mode == CheckInRepeating {
		if err := ci.armLocked(); err != nil {
			ci.mu.Unlock()
			return ci.Snapshot(), err
		}
	} else {
		ci.countdown.Stop()
		ci.state = CheckInSafe
	}
	ci.cycles++
	ci.mu.Unlock()

	desc := "Your guardians know you are safe."
	if ci.cfg.Mode == CheckInRepeating {
		desc = fmt.Sprintf("Next check-in due in %d seconds.", ci.cfg.TotalSeconds)
	}
	ci.notifier.Notify(ctx, ci.event(EventCheckedIn, SeverityInfo, "You are Checked In!", desc))
	return ci.Snapshot(), nil
}

// Stop abandons a running check-in without alerting anyone.
func (ci *CheckIn) Stop(ctx context.Context) error {
	ci.mu.Lock()
	if ci.state != CheckInRunning {
		state := ci.state
		ci.mu.Unlock()
		return fmt.Errorf("stop check-in in state %s: %w", state, ErrInvalidTransition)
	}
	ci.countdown.Reset()
	ci.state = CheckInIdle
	ci.mu.Unlock()

	ci.notifier.Notify(ctx, ci.event(EventCheckInStopped, SeverityInfo, "Check-in Stopped", ""))
	return nil
}

// Reset returns a finished check-in to idle. Resetting an idle check-in is a no-op.
func (ci *CheckIn) Reset() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	switch ci.state {
	case CheckInIdle:
		return nil
	case CheckInSafe, CheckInAlerted:
		ci.countdown.Reset()
		ci.state = CheckInIdle
		return nil
	}
	return fmt.Errorf("reset check-in in state %s: %w", ci.state, ErrInvalidTransition)
}

func (ci *CheckIn) Tick() bool {
	return ci.countdown.Tick()
}

func (ci *CheckIn) State() CheckInState {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.state
}

func (ci *CheckIn) Snapshot() CheckInSnapshot {
	ci.mu.Lock()
	state, cycles := ci.state, ci.cycles
	ci.mu.Unlock()

	return CheckInSnapshot{
		State:     state,
		Mode:      ci.cfg.Mode,
		Cycles:    cycles,
		Countdown: ci.countdown.Snapshot(),
	}
}

// Close stops the countdown silently.
func (ci *CheckIn) Close() {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.countdown.Stop()
	if ci.state == CheckInRunning {
		ci.state = CheckInIdle
	}
}

func (ci *CheckIn) armLocked() error {
	session, err := ci.countdown.Start(ci.cfg.TotalSeconds)
	if err != nil {
		return err
	}
	ci.session = session
	ci.state = CheckInRunning
	return nil
}

func (ci *CheckIn) onExpire(session uint64) {
	ci.mu.Lock()
	if session != ci.session || ci.state != CheckInRunning {
		ci.mu.Unlock()
		return
	}
	ci.state = CheckInAlerted
	ci.mu.Unlock()

	ctx := context.Background()
	ci.notifier.Notify(ctx, ci.event(EventCheckInMissed, SeverityDestructive,
		"Check-in Missed!", "An alert has been sent to your guardians."))

	if !ci.cfg.EscalateOnMiss || ci.escalator == nil {
		return
	}
	if _, err := ci.escalator.Escalate(ctx, ci.cfg.Source); err != nil {
		logrus.WithField("source", ci.cfg.Source).Errorf("Missed check-in escalation failed: %v", err)
	}
}

func (ci *CheckIn) event(t EventType, sev Severity, title, desc string) Event {
	e := newEvent(t, sev, title, desc)
	e.Source = ci.cfg.Source
	return e
}
