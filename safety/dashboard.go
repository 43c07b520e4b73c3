package safety

import "context"

type DashboardConfig struct {
	Confirmation       ConfirmationConfig
	CheckIn            CheckInConfig
	Trip               TripConfig
	SOS                SOSConfig
	EscalateOnDistress bool
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Confirmation:       DefaultConfirmationConfig(),
		CheckIn:            DefaultCheckInConfig(),
		Trip:               DefaultTripConfig(),
		SOS:                DefaultSOSConfig(),
		EscalateOnDistress: true,
	}
}

type DashboardDeps struct {
	Notifier     Notifier
	Capabilities CapabilityProvider
	Summarizer   Summarizer
	Confirmer    DistressConfirmer
}

// Dashboard groups one user's flows around a shared SOS controller, which
// is the escalation target of every arming flow.
type Dashboard struct {
	Confirmation *Confirmation
	CheckIn      *CheckIn
	Trip         *TripMonitor
	SOS          *SOSController
	Distress     *DistressDetector
}

func NewDashboard(cfg DashboardConfig, deps DashboardDeps) *Dashboard {
	sos := NewSOSController(cfg.SOS, deps.Capabilities, deps.Summarizer, deps.Notifier)
	return &Dashboard{
		Confirmation: NewConfirmation(cfg.Confirmation, deps.Notifier, sos),
		CheckIn:      NewCheckIn(cfg.CheckIn, deps.Notifier, sos),
		Trip:         NewTripMonitor(cfg.Trip, deps.Notifier, sos),
		SOS:          sos,
		Distress:     NewDistressDetector(deps.Confirmer, cfg.EscalateOnDistress, deps.Notifier, sos),
	}
}

type DashboardSnapshot struct {
	Confirmation ConfirmationSnapshot `json:"confirmation"`
	CheckIn      CheckInSnapshot      `json:"checkIn"`
	Trip         TripSnapshot         `json:"trip"`
	SOS          SessionSnapshot      `json:"sos"`
	Distress     DistressSnapshot     `json:"distress"`
}

func (d *Dashboard) Snapshot() DashboardSnapshot {
	return DashboardSnapshot{
		Confirmation: d.Confirmation.Snapshot(),
		CheckIn:      d.CheckIn.Snapshot(),
		Trip:         d.Trip.Snapshot(),
		SOS:          d.SOS.Snapshot(),
		Distress:     d.Distress.Snapshot(),
	}
}

// Busy reports whether any flow is running or an SOS session is open.
func (d *Dashboard) Busy() bool {
	return d.Confirmation.State() == ConfirmationCounting ||
		d.CheckIn.State() == CheckInRunning ||
		d.Trip.State() == TripActive ||
		d.SOS.Active()
}

// Close stops every countdown and ends an open SOS session.
func (d *Dashboard) Close(ctx context.Context) (SessionSnapshot, bool) {
	d.Confirmation.Close()
	d.CheckIn.Close()
	d.Trip.Close()
	final, ended, _ := d.SOS.End(ctx)
	return final, ended
}
