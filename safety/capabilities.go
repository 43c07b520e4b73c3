package safety

import (
	"context"

	"github.com/sirupsen/logrus"
)

// PermissionState records the outcome of a capability request.
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// Capability is a scoped device resource. Release must be safe to call more than once.
type Capability interface {
	Release() error
}

// MediaStream is a live camera and microphone feed.
type MediaStream interface {
	Capability
	StartRecording(ctx context.Context) error
	// StopRecording returns a reference to the saved recording.
	StopRecording(ctx context.Context) (string, error)
	// CapturePhoto returns a reference to the captured frame.
	CapturePhoto(ctx context.Context) (string, error)
	SetNightVision(on bool) error
}

// LocationWatch streams the user's position for the lifetime of the session.
type LocationWatch interface {
	Capability
	Last() (Position, bool)
}

// CapabilityProvider acquires device capabilities. A denial is reported as an
// error wrapping ErrCapabilityDenied.
type CapabilityProvider interface {
	AcquireMedia(ctx context.Context) (MediaStream, error)
	AcquireLocation(ctx context.Context) (LocationWatch, error)
	AcquireSpeech(ctx context.Context) (Capability, error)
}

// Summarizer condenses a transcript into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// DistressConfirmer decides whether a sensor sample indicates distress.
type DistressConfirmer interface {
	ConfirmDistress(ctx context.Context, sample SensorSample) (DistressVerdict, error)
}

func release(c Capability) {
	if c == nil {
		return
	}
	if err := c.Release(); err != nil {
		logrus.Warnf("Failed to release capability: %v", err)
	}
}
