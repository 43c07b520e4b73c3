package safety

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type DistressState string

const (
	DistressIdle      DistressState = "idle"
	DistressListening DistressState = "listening"
	DistressDetecting DistressState = "detecting"
	DistressConfirmed DistressState = "confirmed"
	DistressClear     DistressState = "clear"
)

// SensorSample is one reading handed to the distress confirmer.
type SensorSample struct {
	AudioDataURI  string     `json:"audioDataUri" validate:"required"`
	Accelerometer [3]float64 `json:"accelerometer"`
	Gyroscope     [3]float64 `json:"gyroscope"`
}

type DistressVerdict struct {
	Confirmed bool   `json:"isDistressConfirmed"`
	Reason    string `json:"distressReason,omitempty"`
}

type DistressSnapshot struct {
	State       DistressState    `json:"state"`
	LastVerdict *DistressVerdict `json:"lastVerdict,omitempty"`
}

// DistressDetector passes sensor samples to a confirmer and escalates to SOS
// when distress is confirmed.
type DistressDetector struct {
	mu sync.Mutex

	state             DistressState
	last              *DistressVerdict
	escalateOnConfirm bool

	confirmer DistressConfirmer
	notifier  Notifier
	escalator Escalator
}

func NewDistressDetector(confirmer DistressConfirmer, escalateOnConfirm bool, notifier Notifier, escalator Escalator) *DistressDetector {
	return &DistressDetector{
		state:             DistressIdle,
		escalateOnConfirm: escalateOnConfirm,
		confirmer:         confirmer,
		notifier:          notifierOrNop(notifier),
		escalator:         escalator,
	}
}

// Listen enables detection.
func (d *DistressDetector) Listen() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DistressIdle {
		d.state = DistressListening
	}
}

// Reset returns a finished detection to listening.
func (d *DistressDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DistressListening
	d.last = nil
}

// Analyze runs one detection. A collaborator failure puts the detector back
// to listening and is reported to the caller.
func (d *DistressDetector) Analyze(ctx context.Context, sample SensorSample) (DistressVerdict, error) {
	if d.confirmer == nil {
		return DistressVerdict{}, ErrNoCollaborator
	}

	d.mu.Lock()
	if d.state != DistressListening {
		state := d.state
		d.mu.Unlock()
		return DistressVerdict{}, fmt.Errorf("analyze in state %s: %w", state, ErrInvalidTransition)
	}
	d.state = DistressDetecting
	d.mu.Unlock()

	verdict, err := d.confirmer.ConfirmDistress(ctx, sample)

	d.mu.Lock()
	if d.state != DistressDetecting {
		d.mu.Unlock()
		return verdict, fmt.Errorf("detection was reset: %w", ErrInvalidTransition)
	}
	if err != nil {
		d.state = DistressListening
		d.mu.Unlock()
		d.notifier.Notify(ctx, newEvent(EventDistressFailed, SeverityDestructive,
			"Analysis Failed", "Could not analyze sensor data."))
		return DistressVerdict{}, fmt.Errorf("confirm distress: %w", err)
	}
	if verdict.Confirmed {
		d.state = DistressConfirmed
	} else {
		d.state = DistressClear
	}
	d.last = &verdict
	d.mu.Unlock()

	if !verdict.Confirmed {
		d.notifier.Notify(ctx, newEvent(EventDistressClear, SeverityInfo, "No Distress Detected", verdict.Reason))
		return verdict, nil
	}

	e := newEvent(EventDistressConfirmed, SeverityDestructive, "Distress Detected!", verdict.Reason)
	e.Source = SourceDistress
	d.notifier.Notify(ctx, e)

	if d.escalateOnConfirm && d.escalator != nil {
		if _, err := d.escalator.Escalate(ctx, SourceDistress); err != nil {
			logrus.Errorf("Distress escalation failed: %v", err)
		}
	}
	return verdict, nil
}

func (d *DistressDetector) Snapshot() DistressSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DistressSnapshot{State: d.state}
	if d.last != nil {
		v := *d.last
		snap.LastVerdict = &v
	}
	return snap
}
