package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

type fakeEscalator struct {
	mu      sync.Mutex
	sources []Source
}

func (f *fakeEscalator) Escalate(_ context.Context, source Source) (SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	return SessionSnapshot{State: SOSActive, Source: source}, nil
}

func (f *fakeEscalator) calls() []Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Source(nil), f.sources...)
}

type fakeMedia struct {
	mu          sync.Mutex
	recording   bool
	photos      int
	recordings  int
	nightVision bool
	released    int
	failPhoto   bool
}

func (m *fakeMedia) StartRecording(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = true
	return nil
}

func (m *fakeMedia) StopRecording(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = false
	m.recordings++
	return fmt.Sprintf("recording-%d", m.recordings), nil
}

func (m *fakeMedia) CapturePhoto(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPhoto {
		return "", errors.New("camera busy")
	}
	m.photos++
	return fmt.Sprintf("photo-%d", m.photos), nil
}

func (m *fakeMedia) SetNightVision(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nightVision = on
	return nil
}

func (m *fakeMedia) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	return nil
}

type fakeLocation struct {
	pos      Position
	released int
}

func (l *fakeLocation) Last() (Position, bool) { return l.pos, true }

func (l *fakeLocation) Release() error {
	l.released++
	return nil
}

type fakeSpeech struct{ released int }

func (s *fakeSpeech) Release() error {
	s.released++
	return nil
}

type fakeCapabilities struct {
	denyCamera   bool
	denyLocation bool
	denySpeech   bool

	media    *fakeMedia
	location *fakeLocation
	speech   *fakeSpeech
}

func newFakeCapabilities() *fakeCapabilities {
	return &fakeCapabilities{
		media:    &fakeMedia{},
		location: &fakeLocation{pos: Position{Lat: 51.5, Lng: -0.12}},
		speech:   &fakeSpeech{},
	}
}

func (f *fakeCapabilities) AcquireMedia(context.Context) (MediaStream, error) {
	if f.denyCamera {
		return nil, fmt.Errorf("camera: %w", ErrCapabilityDenied)
	}
	return f.media, nil
}

func (f *fakeCapabilities) AcquireLocation(context.Context) (LocationWatch, error) {
	if f.denyLocation {
		return nil, fmt.Errorf("geolocation: %w", ErrCapabilityDenied)
	}
	return f.location, nil
}

func (f *fakeCapabilities) AcquireSpeech(context.Context) (Capability, error) {
	if f.denySpeech {
		return nil, fmt.Errorf("speech: %w", ErrCapabilityDenied)
	}
	return f.speech, nil
}

type fakeSummarizer struct {
	mu      sync.Mutex
	got     []string
	summary string
	err     error
	block   chan struct{}
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	f.mu.Lock()
	f.got = append(f.got, transcript)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.summary, f.err
}

type fakeConfirmer struct {
	verdict DistressVerdict
	err     error
}

func (f fakeConfirmer) ConfirmDistress(context.Context, SensorSample) (DistressVerdict, error) {
	return f.verdict, f.err
}

func manualConfirmation(total int, mode ExpiryMode, n Notifier, e Escalator) *Confirmation {
	return NewConfirmation(ConfirmationConfig{TotalSeconds: total, Mode: mode}, n, e)
}
