package safety

import "errors"

var (
	ErrInvalidDuration   = errors.New("countdown duration must be positive")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoActiveSession   = errors.New("no active SOS session")
	ErrEmptyMessage      = errors.New("message text is empty")
	ErrNoLiveFeed        = errors.New("live feed unavailable")
	ErrSummaryInProgress = errors.New("summary already in progress")
	ErrCapabilityDenied  = errors.New("capability denied")
	ErrVoiceControlOff   = errors.New("voice control is not enabled")
	ErrNoCollaborator    = errors.New("collaborator not configured")
)
