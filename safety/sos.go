package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SOSState string

const (
	SOSIdle   SOSState = "idle"
	SOSActive SOSState = "active"
)

const (
	AuthorSystem = "Her-Way"
	AuthorAI     = "AI Guardian"

	HelpMessage = "I need help, I can't talk right now."
)

// ChatMessage is one entry of the SOS transcript.
type ChatMessage struct {
	ID            string    `json:"id"`
	Author        string    `json:"author"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	TimeLabel     string    `json:"timeLabel"`
	IsAIGenerated bool      `json:"isAIGenerated"`
}

type SeedMessage struct {
	Author string
	Text   string
}

// SessionSnapshot is a copy of the SOS session state safe to hand out.
type SessionSnapshot struct {
	ID                 string          `json:"id,omitempty"`
	State              SOSState        `json:"state"`
	Source             Source          `json:"source,omitempty"`
	StartedAt          *time.Time      `json:"startedAt,omitempty"`
	EndedAt            *time.Time      `json:"endedAt,omitempty"`
	Transcript         []ChatMessage   `json:"transcript"`
	IsRecording        bool            `json:"isRecording"`
	IsNightVisionOn    bool            `json:"isNightVisionOn"`
	IsVoiceControlOn   bool            `json:"isVoiceControlOn"`
	IsSummarizing      bool            `json:"isSummarizing"`
	CameraPermission   PermissionState `json:"cameraPermission"`
	LocationPermission PermissionState `json:"locationPermission"`
	LastPosition       *Position       `json:"lastPosition,omitempty"`
	Recordings         []string        `json:"recordings,omitempty"`
	Photos             []string        `json:"photos,omitempty"`
}

type SOSConfig struct {
	// UserAuthor labels messages the user sends.
	UserAuthor     string
	Seed           []SeedMessage
	SummaryTimeout time.Duration
}

func DefaultSOSConfig() SOSConfig {
	return SOSConfig{
		UserAuthor: "You",
		Seed: []SeedMessage{
			{Author: AuthorSystem, Text: "SOS activated. Your live location has been shared with your guardians."},
		},
		SummaryTimeout: 20 * time.Second,
	}
}

type sosSession struct {
	id          string
	source      Source
	startedAt   time.Time
	transcript  []ChatMessage
	recording   bool
	nightVision bool
	voice       bool
	cameraPerm  PermissionState
	locPerm     PermissionState
	recordings  []string
	photos      []string

	media    MediaStream
	location LocationWatch
	speech   Capability
}

// SOSController owns the active SOS session. It stays active until End.
type SOSController struct {
	mu sync.Mutex

	cfg         SOSConfig
	session     *sosSession
	summarizing bool

	caps       CapabilityProvider
	summarizer Summarizer
	notifier   Notifier
}

func NewSOSController(cfg SOSConfig, caps CapabilityProvider, summarizer Summarizer, notifier Notifier) *SOSController {
	if cfg.UserAuthor == "" {
		cfg.UserAuthor = "You"
	}
	return &SOSController{
		cfg:        cfg,
		caps:       caps,
		summarizer: summarizer,
		notifier:   notifierOrNop(notifier),
	}
}

// Escalate opens an SOS session, or returns the running one unchanged.
// Capability denials degrade the session instead of failing it.
func (c *SOSController) Escalate(ctx context.Context, source Source) (SessionSnapshot, error) {
	if source == "" {
		source = SourceManual
	}

	c.mu.Lock()
	if c.session != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}

	now := time.Now()
	s := &sosSession{
		id:         uuid.NewString(),
		source:     source,
		startedAt:  now,
		cameraPerm: PermissionUnknown,
		locPerm:    PermissionUnknown,
	}
	for _, seed := range c.cfg.Seed {
		s.transcript = append(s.transcript, newMessage(seed.Author, seed.Text, false, now))
	}
	c.session = s

	started := newEvent(EventSOSStarted, SeverityDestructive, "SOS Mode Activated",
		"Your guardians and authorities have been alerted.")
	started.Source = source
	started.Data = map[string]interface{}{"sessionId": s.id}
	events := []Event{started}

	events = append(events, c.acquireLocked(ctx, s)...)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{"session": s.id, "source": source}).Info("SOS session started")
	c.emit(ctx, events)
	return snap, nil
}

func (c *SOSController) acquireLocked(ctx context.Context, s *sosSession) []Event {
	var events []Event
	if c.caps == nil {
		return events
	}

	if media, err := c.caps.AcquireMedia(ctx); err != nil {
		s.cameraPerm = PermissionDenied
		events = append(events, permissionEvent("camera", err,
			"Camera Access Denied", "Please enable camera permissions to share your video feed."))
	} else {
		s.media = media
		s.cameraPerm = PermissionGranted
	}

	if watch, err := c.caps.AcquireLocation(ctx); err != nil {
		s.locPerm = PermissionDenied
		events = append(events, permissionEvent("location", err,
			"Location Access Denied", "Please enable location permissions to share your live location."))
	} else {
		s.location = watch
		s.locPerm = PermissionGranted
	}
	return events
}

func permissionEvent(capability string, err error, title, desc string) Event {
	e := newEvent(EventPermissionDenied, SeverityDestructive, title, desc)
	e.Data = map[string]interface{}{"capability": capability, "error": err.Error()}
	return e
}

// AppendMessage adds a message to the transcript in arrival order.
func (c *SOSController) AppendMessage(ctx context.Context, author, text string) (ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	if strings.TrimSpace(author) == "" {
		author = c.cfg.UserAuthor
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ChatMessage{}, ErrNoActiveSession
	}
	msg := c.appendLocked(author, text, false)
	c.mu.Unlock()

	c.emit(ctx, []Event{messageEvent(msg)})
	return msg, nil
}

// SendUserMessage appends a message authored by the user.
func (c *SOSController) SendUserMessage(ctx context.Context, text string) (ChatMessage, error) {
	return c.AppendMessage(ctx, c.cfg.UserAuthor, text)
}

// SendHelpMessage posts the canned help message on the user's behalf.
func (c *SOSController) SendHelpMessage(ctx context.Context) (ChatMessage, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ChatMessage{}, ErrNoActiveSession
	}
	msg := c.appendLocked(c.cfg.UserAuthor, HelpMessage, false)
	c.mu.Unlock()

	c.emit(ctx, []Event{messageEvent(msg),
		newEvent(EventHelpMessageSent, SeverityDestructive, "Help message sent.", HelpMessage)})
	return msg, nil
}

func (c *SOSController) appendLocked(author, text string, ai bool) ChatMessage {
	msg := newMessage(author, text, ai, time.Now())
	c.session.transcript = append(c.session.transcript, msg)
	return msg
}

func newMessage(author, text string, ai bool, at time.Time) ChatMessage {
	return ChatMessage{
		ID:            uuid.NewString(),
		Author:        author,
		Text:          text,
		Timestamp:     at,
		TimeLabel:     at.Format("15:04"),
		IsAIGenerated: ai,
	}
}

func messageEvent(msg ChatMessage) Event {
	e := newEvent(EventMessageAppended, SeverityInfo, "New message", "")
	e.Data = map[string]interface{}{"message": msg}
	return e
}

// ToggleRecording starts or stops recording the live feed.
func (c *SOSController) ToggleRecording(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return false, ErrNoActiveSession
	}
	on, events, err := c.toggleRecordingLocked(ctx)
	c.mu.Unlock()

	c.emit(ctx, events)
	return on, err
}

func (c *SOSController) toggleRecordingLocked(ctx context.Context) (bool, []Event, error) {
	s := c.session
	if s.media == nil {
		return s.recording, nil, ErrNoLiveFeed
	}

	if s.recording {
		ref, err := s.media.StopRecording(ctx)
		if err != nil {
			return true, nil, fmt.Errorf("stop recording: %w", err)
		}
		s.recording = false
		if ref != "" {
			s.recordings = append(s.recordings, ref)
		}
		e := newEvent(EventRecordingSaved, SeverityInfo, "Recording Saved", "Your video has been securely stored.")
		e.Data = map[string]interface{}{"ref": ref}
		return false, []Event{e}, nil
	}

	if err := s.media.StartRecording(ctx); err != nil {
		return false, nil, fmt.Errorf("start recording: %w", err)
	}
	s.recording = true
	return true, []Event{newEvent(EventRecordingStarted, SeverityInfo,
		"Recording Started", "Your live feed is now being recorded.")}, nil
}

// CapturePhoto saves a frame of the live feed.
func (c *SOSController) CapturePhoto(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return "", ErrNoActiveSession
	}
	ref, events, err := c.capturePhotoLocked(ctx)
	c.mu.Unlock()

	c.emit(ctx, events)
	return ref, err
}

func (c *SOSController) capturePhotoLocked(ctx context.Context) (string, []Event, error) {
	s := c.session
	if s.media == nil {
		return "", nil, ErrNoLiveFeed
	}
	ref, err := s.media.CapturePhoto(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("capture photo: %w", err)
	}
	s.photos = append(s.photos, ref)
	e := newEvent(EventPhotoCaptured, SeverityInfo, "Photo Captured", "A snapshot has been securely saved.")
	e.Data = map[string]interface{}{"ref": ref}
	return ref, []Event{e}, nil
}

func (c *SOSController) ToggleNightVision(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return false, ErrNoActiveSession
	}
	on := !s.nightVision
	if s.media != nil {
		if err := s.media.SetNightVision(on); err != nil {
			return s.nightVision, fmt.Errorf("night vision: %w", err)
		}
	}
	s.nightVision = on
	return on, nil
}

// ToggleVoiceControl acquires or releases speech recognition.
func (c *SOSController) ToggleVoiceControl(ctx context.Context) (bool, error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return false, ErrNoActiveSession
	}

	if s.voice {
		release(s.speech)
		s.speech = nil
		s.voice = false
		c.mu.Unlock()
		c.emit(ctx, []Event{newEvent(EventVoiceControlChanged, SeverityInfo, "Voice Control Disabled", "")})
		return false, nil
	}

	if c.caps == nil {
		c.mu.Unlock()
		c.emit(ctx, []Event{newEvent(EventError, SeverityDestructive, "Voice control not supported on this device.", "")})
		return false, fmt.Errorf("voice control: %w", ErrCapabilityDenied)
	}
	speech, err := c.caps.AcquireSpeech(ctx)
	if err != nil {
		c.mu.Unlock()
		title := "Could not start voice control."
		if errors.Is(err, ErrCapabilityDenied) {
			title = "Voice control not supported on this device."
		}
		c.emit(ctx, []Event{newEvent(EventError, SeverityDestructive, title, "")})
		return false, fmt.Errorf("voice control: %w", err)
	}
	s.speech = speech
	s.voice = true
	c.mu.Unlock()

	c.emit(ctx, []Event{newEvent(EventVoiceControlChanged, SeverityInfo, "Voice Control Enabled",
		`Say "start recording", "capture photo", or "send help message".`)})
	return true, nil
}

// VoiceCommand is a recognised entry of the voice vocabulary.
type VoiceCommand string

const (
	VoiceStartRecording VoiceCommand = "start recording"
	VoiceStopRecording  VoiceCommand = "stop recording"
	VoiceCapturePhoto   VoiceCommand = "capture photo"
	VoiceSendHelp       VoiceCommand = "send help message"
	VoiceUnknown        VoiceCommand = ""
)

var voiceVocabulary = []VoiceCommand{VoiceStartRecording, VoiceStopRecording, VoiceCapturePhoto, VoiceSendHelp}

// ParseVoiceCommand finds the first vocabulary phrase contained in the transcript.
func ParseVoiceCommand(transcript string) VoiceCommand {
	heard := strings.ToLower(strings.TrimSpace(transcript))
	for _, cmd := range voiceVocabulary {
		if strings.Contains(heard, string(cmd)) {
			return cmd
		}
	}
	return VoiceUnknown
}

// HandleVoiceCommand dispatches a recognised transcript and acknowledges it
// in the chat. Unrecognised phrases are acknowledged and otherwise ignored.
func (c *SOSController) HandleVoiceCommand(ctx context.Context, transcript string) (VoiceCommand, error) {
	heard := strings.ToLower(strings.TrimSpace(transcript))
	if heard == "" {
		return VoiceUnknown, ErrEmptyMessage
	}

	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return VoiceUnknown, ErrNoActiveSession
	}
	if !s.voice {
		c.mu.Unlock()
		return VoiceUnknown, ErrVoiceControlOff
	}

	heardEvent := newEvent(EventVoiceCommand, SeverityInfo, "Voice Command Heard", fmt.Sprintf("%q", heard))
	events := []Event{heardEvent}

	cmd := ParseVoiceCommand(heard)
	var (
		more []Event
		err  error
		ack  string
	)
	switch cmd {
	case VoiceStartRecording:
		if !s.recording {
			_, more, err = c.toggleRecordingLocked(ctx)
		}
		ack = "Voice command: recording started."
	case VoiceStopRecording:
		if s.recording {
			_, more, err = c.toggleRecordingLocked(ctx)
		}
		ack = "Voice command: recording stopped."
	case VoiceCapturePhoto:
		_, more, err = c.capturePhotoLocked(ctx)
		ack = "Voice command: photo captured."
	case VoiceSendHelp:
		help := c.appendLocked(c.cfg.UserAuthor, HelpMessage, false)
		more = []Event{messageEvent(help), newEvent(EventHelpMessageSent, SeverityDestructive, "Help message sent.", HelpMessage)}
		ack = "Voice command: help message sent."
	default:
		ack = fmt.Sprintf("Voice command heard: %q", heard)
	}
	events = append(events, more...)

	if err != nil {
		c.mu.Unlock()
		events = append(events, newEvent(EventError, SeverityDestructive, "Voice command failed", err.Error()))
		c.emit(ctx, events)
		return cmd, err
	}

	ackMsg := c.appendLocked(AuthorSystem, ack, false)
	events = append(events, messageEvent(ackMsg))
	c.mu.Unlock()

	c.emit(ctx, events)
	return cmd, nil
}

// FormatTranscript renders messages as "author: text" lines in order.
func FormatTranscript(messages []ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Author+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// RequestSummary asks the summarizer for a digest of the transcript and
// appends it as an AI message. Failures leave the transcript untouched.
func (c *SOSController) RequestSummary(ctx context.Context) (ChatMessage, error) {
	if c.summarizer == nil {
		return ChatMessage{}, ErrNoCollaborator
	}

	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return ChatMessage{}, ErrNoActiveSession
	}
	if c.summarizing {
		c.mu.Unlock()
		return ChatMessage{}, ErrSummaryInProgress
	}
	c.summarizing = true
	history := FormatTranscript(s.transcript)
	c.mu.Unlock()

	sctx := ctx
	if c.cfg.SummaryTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, c.cfg.SummaryTimeout)
		defer cancel()
	}
	summary, err := c.summarizer.Summarize(sctx, history)

	c.mu.Lock()
	c.summarizing = false
	if err == nil && c.session != s {
		err = ErrNoActiveSession
	}
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("summarizer returned an empty summary")
	}
	if err != nil {
		c.mu.Unlock()
		logrus.Errorf("Error summarizing chat: %v", err)
		c.emit(ctx, []Event{newEvent(EventSummaryFailed, SeverityDestructive, "Could not generate summary.", "")})
		return ChatMessage{}, fmt.Errorf("summarize transcript: %w", err)
	}
	msg := c.appendLocked(AuthorAI, summary, true)
	c.mu.Unlock()

	c.emit(ctx, []Event{messageEvent(msg)})
	return msg, nil
}

// End closes the session and releases every capability. Ending an idle
// controller does nothing and reports false.
func (c *SOSController) End(ctx context.Context) (SessionSnapshot, bool, error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return SessionSnapshot{State: SOSIdle}, false, nil
	}

	var events []Event
	if s.recording && s.media != nil {
		if ref, err := s.media.StopRecording(ctx); err != nil {
			logrus.WithField("session", s.id).Warnf("Failed to stop recording on SOS end: %v", err)
		} else {
			if ref != "" {
				s.recordings = append(s.recordings, ref)
			}
			events = append(events, newEvent(EventRecordingSaved, SeverityInfo,
				"Recording Saved", "Your video has been securely stored."))
		}
		s.recording = false
	}
	release(s.speech)
	release(s.media)
	release(s.location)
	s.voice = false

	final := c.snapshotLocked()
	ended := time.Now()
	final.EndedAt = &ended
	final.State = SOSIdle
	c.session = nil
	c.mu.Unlock()

	e := newEvent(EventSOSEnded, SeverityInfo, "SOS Mode Deactivated",
		"You have marked yourself as safe. Your guardians have been notified.")
	e.Source = s.source
	e.Data = map[string]interface{}{"sessionId": s.id}
	events = append(events, e)

	logrus.WithField("session", s.id).Info("SOS session ended")
	c.emit(ctx, events)
	return final, true, nil
}

func (c *SOSController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *SOSController) Snapshot() SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *SOSController) snapshotLocked() SessionSnapshot {
	s := c.session
	if s == nil {
		return SessionSnapshot{
			State:              SOSIdle,
			Transcript:         []ChatMessage{},
			CameraPermission:   PermissionUnknown,
			LocationPermission: PermissionUnknown,
		}
	}

	started := s.startedAt
	snap := SessionSnapshot{
		ID:                 s.id,
		State:              SOSActive,
		Source:             s.source,
		StartedAt:          &started,
		Transcript:         append(make([]ChatMessage, 0, len(s.transcript)), s.transcript...),
		IsRecording:        s.recording,
		IsNightVisionOn:    s.nightVision,
		IsVoiceControlOn:   s.voice,
		IsSummarizing:      c.summarizing,
		CameraPermission:   s.cameraPerm,
		LocationPermission: s.locPerm,
		Recordings:         append([]string(nil), s.recordings...),
		Photos:             append([]string(nil), s.photos...),
	}
	if s.location != nil {
		if pos, ok := s.location.Last(); ok {
			snap.LastPosition = &pos
		}
	}
	return snap
}

func (c *SOSController) emit(ctx context.Context, events []Event) {
	for _, e := range events {
		c.notifier.Notify(ctx, e)
	}
}
