package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"herway/models"
	"herway/safety"
)

// DeviceCapabilities stands in for the phone's camera, location and speech
// hardware on the server side. The device reports its permission answers and
// positions; media captures become opaque references stored with the incident.
type DeviceCapabilities struct {
	mu       sync.Mutex
	grants   models.CapabilityGrants
	position *safety.Position
}

func NewDeviceCapabilities() *DeviceCapabilities {
	return &DeviceCapabilities{}
}

// SetGrants merges the reported permission answers. Unreported capabilities
// keep their previous answer.
func (d *DeviceCapabilities) SetGrants(g models.CapabilityGrants) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g.Camera != nil {
		d.grants.Camera = g.Camera
	}
	if g.Location != nil {
		d.grants.Location = g.Location
	}
	if g.Speech != nil {
		d.grants.Speech = g.Speech
	}
}

func (d *DeviceCapabilities) UpdatePosition(lat, lng float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = &safety.Position{Lat: lat, Lng: lng, At: time.Now()}
}

func (d *DeviceCapabilities) lastPosition() (safety.Position, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.position == nil {
		return safety.Position{}, false
	}
	return *d.position, true
}

// denied reports an explicit refusal. A capability the device never reported on is allowed.
func (d *DeviceCapabilities) denied(grant func(models.CapabilityGrants) *bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	g := grant(d.grants)
	return g != nil && !*g
}

func (d *DeviceCapabilities) AcquireMedia(ctx context.Context) (safety.MediaStream, error) {
	if d.denied(func(g models.CapabilityGrants) *bool { return g.Camera }) {
		return nil, fmt.Errorf("camera: %w", safety.ErrCapabilityDenied)
	}
	return &deviceStream{}, ctx.Err()
}

func (d *DeviceCapabilities) AcquireLocation(ctx context.Context) (safety.LocationWatch, error) {
	if d.denied(func(g models.CapabilityGrants) *bool { return g.Location }) {
		return nil, fmt.Errorf("location: %w", safety.ErrCapabilityDenied)
	}
	return &deviceLocation{caps: d}, ctx.Err()
}

func (d *DeviceCapabilities) AcquireSpeech(ctx context.Context) (safety.Capability, error) {
	if d.denied(func(g models.CapabilityGrants) *bool { return g.Speech }) {
		return nil, fmt.Errorf("speech: %w", safety.ErrCapabilityDenied)
	}
	return releaseFunc(func() error { return nil }), ctx.Err()
}

type releaseFunc func() error

func (f releaseFunc) Release() error { return f() }

type deviceStream struct {
	mu        sync.Mutex
	recording string
	released  bool
}

func (s *deviceStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.recording = ""
	return nil
}

func (s *deviceStream) StartRecording(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return safety.ErrNoLiveFeed
	}
	s.recording = "recording-" + uuid.NewString()
	return nil
}

func (s *deviceStream) StopRecording(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := s.recording
	s.recording = ""
	return ref, nil
}

func (s *deviceStream) CapturePhoto(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return "", safety.ErrNoLiveFeed
	}
	return "photo-" + uuid.NewString(), nil
}

func (s *deviceStream) SetNightVision(bool) error { return nil }

type deviceLocation struct {
	caps *DeviceCapabilities
}

func (l *deviceLocation) Release() error { return nil }

func (l *deviceLocation) Last() (safety.Position, bool) {
	return l.caps.lastPosition()
}
