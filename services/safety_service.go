package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"herway/metrics"
	"herway/models"
	"herway/safety"
	"herway/utils"
)

const storeTimeout = 5 * time.Second

// User identifies the caller of a safety operation. Name is shown to guardians.
type User struct {
	ID   string
	Name string
}

// EventBroadcaster pushes realtime frames to a user's sockets and to the
// guardians watching that user.
type EventBroadcaster interface {
	SendToUser(userID, msgType string, data interface{})
	SendToWatchers(userID, msgType string, data interface{})
}

type IncidentStore interface {
	Create(ctx context.Context, incident *models.Incident) error
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Incident, int64, error)
	LogCheckIn(ctx context.Context, entry *models.CheckInLog) error
	ListCheckIns(ctx context.Context, userID string, limit int) ([]models.CheckInLog, error)
}

type StatusStore interface {
	PutStatus(ctx context.Context, status *models.SafetyStatus) error
	GetStatus(ctx context.Context, userID string) (*models.SafetyStatus, error)
	GetStatuses(ctx context.Context, userIDs []string) (map[string]*models.SafetyStatus, error)
	DeleteStatus(ctx context.Context, userID string) error
	SetOnline(ctx context.Context, userID string, online bool) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// GuardianAlerter tells a user's guardians about an event.
type GuardianAlerter interface {
	Alert(ctx context.Context, user User, event safety.Event)
}

type SafetyServiceDeps struct {
	Incidents   IncidentStore
	Status      StatusStore
	Broadcaster EventBroadcaster
	Guardians   GuardianAlerter
	Summarizer  safety.Summarizer
	Confirmer   safety.DistressConfirmer
}

// SafetyService owns one in-memory dashboard per user and routes the events
// they emit to sockets, guardians, the status cache and the incident log.
type SafetyService struct {
	mu         sync.Mutex
	dashboards map[string]*userDashboard

	cfg       safety.DashboardConfig
	deps      SafetyServiceDeps
	validator *utils.ValidationService
}

type userDashboard struct {
	mu        sync.Mutex
	user      User
	lastUsed  time.Time
	lastEvent *safety.Event

	dashboard *safety.Dashboard
	caps      *DeviceCapabilities
}

func NewSafetyService(cfg safety.DashboardConfig, deps SafetyServiceDeps) *SafetyService {
	return &SafetyService{
		dashboards: make(map[string]*userDashboard),
		cfg:        cfg,
		deps:       deps,
		validator:  utils.NewValidationService(),
	}
}

// dashboard returns the user's dashboard, creating it on first use.
func (ss *SafetyService) dashboard(user User) *userDashboard {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ud, ok := ss.dashboards[user.ID]
	if !ok {
		ud = &userDashboard{user: user, caps: NewDeviceCapabilities()}
		ud.dashboard = safety.NewDashboard(ss.cfg, safety.DashboardDeps{
			Notifier:     ss.notifierFor(ud),
			Capabilities: ud.caps,
			Summarizer:   ss.deps.Summarizer,
			Confirmer:    ss.deps.Confirmer,
		})
		ss.dashboards[user.ID] = ud
		metrics.ActiveDashboards.Inc()
		logrus.WithField("user", user.ID).Debug("Safety dashboard created")
	}
	ud.touch(user.Name)
	return ud
}

// peek returns an existing dashboard without creating one.
func (ss *SafetyService) peek(userID string) (*userDashboard, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ud, ok := ss.dashboards[userID]
	return ud, ok
}

func (ud *userDashboard) touch(name string) {
	ud.mu.Lock()
	defer ud.mu.Unlock()
	ud.lastUsed = time.Now()
	if name != "" {
		ud.user.Name = name
	}
}

func (ud *userDashboard) identity() User {
	ud.mu.Lock()
	defer ud.mu.Unlock()
	return ud.user
}

func (ud *userDashboard) idleSince() time.Time {
	ud.mu.Lock()
	defer ud.mu.Unlock()
	return ud.lastUsed
}

func (ud *userDashboard) setLastEvent(e safety.Event) {
	ud.mu.Lock()
	defer ud.mu.Unlock()
	ud.lastEvent = &e
}

func (ud *userDashboard) last() *safety.Event {
	ud.mu.Lock()
	defer ud.mu.Unlock()
	if ud.lastEvent == nil {
		return nil
	}
	e := *ud.lastEvent
	return &e
}

func (ss *SafetyService) notifierFor(ud *userDashboard) safety.Notifier {
	return safety.MultiNotifier{
		safety.LogNotifier{Fields: logrus.Fields{"user": ud.user.ID}},
		safety.NotifierFunc(func(ctx context.Context, e safety.Event) {
			ss.handleEvent(ctx, ud, e)
		}),
	}
}

func (ss *SafetyService) handleEvent(ctx context.Context, ud *userDashboard, e safety.Event) {
	user := ud.identity()
	metrics.IncSafetyEvent(string(e.Type), string(e.Severity))
	if e.Type == safety.EventSOSStarted {
		metrics.SOSSessionsTotal.WithLabelValues(string(e.Source)).Inc()
	}

	frame := models.WSSafetyEvent{UserID: user.ID, Event: e, Timestamp: e.At}
	if ss.deps.Broadcaster != nil {
		ss.deps.Broadcaster.SendToUser(user.ID, models.WSTypeSafetyEvent, frame)
		if e.GuardianFacing() || e.Type == safety.EventMessageAppended {
			ss.deps.Broadcaster.SendToWatchers(user.ID, models.WSTypeGuardianEvent, frame)
		}
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if e.GuardianFacing() && ss.deps.Guardians != nil {
		ss.deps.Guardians.Alert(storeCtx, user, e)
	}

	if outcome := checkInOutcome(e.Type); outcome != "" && ss.deps.Incidents != nil {
		source := string(e.Source)
		if source == "" {
			source = string(safety.SourceCheckIn)
		}
		entry := &models.CheckInLog{UserID: user.ID, Outcome: outcome, Source: source, At: e.At}
		if err := ss.deps.Incidents.LogCheckIn(storeCtx, entry); err != nil {
			logrus.WithField("user", user.ID).Errorf("Failed to log check-in outcome: %v", err)
		}
	}

	if e.Type == safety.EventMessageAppended {
		return
	}
	ud.setLastEvent(e)
	ss.publishStatus(storeCtx, ud)
}

func checkInOutcome(t safety.EventType) string {
	switch t {
	case safety.EventCheckedIn:
		return models.CheckInOutcomeSafe
	case safety.EventCheckInMissed:
		return models.CheckInOutcomeMissed
	case safety.EventCheckInStopped:
		return models.CheckInOutcomeStopped
	}
	return ""
}

func (ss *SafetyService) publishStatus(ctx context.Context, ud *userDashboard) {
	if ss.deps.Status == nil {
		return
	}
	status := buildStatus(ud.identity(), ud.dashboard.Snapshot(), ud.last())
	if err := ss.deps.Status.PutStatus(ctx, status); err != nil {
		logrus.WithField("user", status.UserID).Warnf("Failed to cache safety status: %v", err)
	}
}

func buildStatus(user User, snap safety.DashboardSnapshot, last *safety.Event) *models.SafetyStatus {
	status := &models.SafetyStatus{
		UserID:         user.ID,
		UserName:       user.Name,
		SOSActive:      snap.SOS.State == safety.SOSActive,
		SOSSessionID:   snap.SOS.ID,
		TripState:      snap.Trip.State,
		Destination:    snap.Trip.Destination,
		CheckInState:   snap.CheckIn.State,
		Confirmation:   string(snap.Confirmation.State),
		LastEvent:      last,
		UpdatedAt:      time.Now().Unix(),
		DistressState:  snap.Distress.State,
		IsRecording:    snap.SOS.IsRecording,
		IsNightVision:  snap.SOS.IsNightVisionOn,
		VoiceControlOn: snap.SOS.IsVoiceControlOn,
	}
	switch {
	case snap.SOS.LastPosition != nil:
		status.LastPosition = snap.SOS.LastPosition
	case snap.Trip.LastPosition != nil:
		status.LastPosition = snap.Trip.LastPosition
	}
	return status
}

// =================== STATUS ===================

func (ss *SafetyService) Status(ctx context.Context, user User) safety.DashboardSnapshot {
	return ss.dashboard(user).dashboard.Snapshot()
}

// LiveStatus reads the in-memory state when the user has a dashboard on this
// instance and falls back to the cached status otherwise.
func (ss *SafetyService) LiveStatus(ctx context.Context, userID string) (*models.SafetyStatus, error) {
	if ud, ok := ss.peek(userID); ok {
		return buildStatus(ud.identity(), ud.dashboard.Snapshot(), ud.last()), nil
	}
	if ss.deps.Status == nil {
		return nil, nil
	}
	return ss.deps.Status.GetStatus(ctx, userID)
}

// =================== EMERGENCY CONFIRMATION ===================

func (ss *SafetyService) ArmEmergency(ctx context.Context, user User, req models.ArmEmergencyRequest) (safety.ConfirmationSnapshot, error) {
	if err := ss.validator.Validate(req); err != nil {
		return safety.ConfirmationSnapshot{}, err
	}
	trigger := safety.TriggerPress
	if req.Trigger != "" {
		trigger = safety.Trigger(req.Trigger)
	}
	return ss.dashboard(user).dashboard.Confirmation.Arm(ctx, trigger)
}

func (ss *SafetyService) CancelEmergency(ctx context.Context, user User) (safety.ConfirmationSnapshot, error) {
	flow := ss.dashboard(user).dashboard.Confirmation
	if err := flow.Cancel(ctx); err != nil {
		return safety.ConfirmationSnapshot{}, err
	}
	return flow.Snapshot(), nil
}

// =================== CHECK-IN ===================

func (ss *SafetyService) StartCheckIn(ctx context.Context, user User) (safety.CheckInSnapshot, error) {
	return ss.dashboard(user).dashboard.CheckIn.Start(ctx)
}

func (ss *SafetyService) MarkSafe(ctx context.Context, user User) (safety.CheckInSnapshot, error) {
	return ss.dashboard(user).dashboard.CheckIn.MarkSafe(ctx)
}

func (ss *SafetyService) StopCheckIn(ctx context.Context, user User) (safety.CheckInSnapshot, error) {
	flow := ss.dashboard(user).dashboard.CheckIn
	if err := flow.Stop(ctx); err != nil {
		return safety.CheckInSnapshot{}, err
	}
	return flow.Snapshot(), nil
}

func (ss *SafetyService) ResetCheckIn(ctx context.Context, user User) (safety.CheckInSnapshot, error) {
	ud := ss.dashboard(user)
	if err := ud.dashboard.CheckIn.Reset(); err != nil {
		return safety.CheckInSnapshot{}, err
	}
	ss.publishStatus(ctx, ud)
	return ud.dashboard.CheckIn.Snapshot(), nil
}

// =================== FOLLOW-ME-HOME ===================

func (ss *SafetyService) StartTrip(ctx context.Context, user User, req models.StartTripRequest) (safety.TripSnapshot, error) {
	if err := ss.validator.Validate(req); err != nil {
		return safety.TripSnapshot{}, err
	}
	return ss.dashboard(user).dashboard.Trip.Start(ctx, req.Destination)
}

func (ss *SafetyService) ArrivedSafely(ctx context.Context, user User) (safety.TripSnapshot, error) {
	return ss.dashboard(user).dashboard.Trip.ArrivedSafely(ctx)
}

func (ss *SafetyService) ResetTrip(ctx context.Context, user User) (safety.TripSnapshot, error) {
	ud := ss.dashboard(user)
	if err := ud.dashboard.Trip.Reset(); err != nil {
		return safety.TripSnapshot{}, err
	}
	ss.publishStatus(ctx, ud)
	return ud.dashboard.Trip.Snapshot(), nil
}

// RecordMovement feeds a device position to the trip monitor and to the
// location stream of any open SOS session.
func (ss *SafetyService) RecordMovement(ctx context.Context, user User, req models.MovementRequest) (safety.TripSnapshot, error) {
	if err := ss.validator.Validate(req); err != nil {
		return safety.TripSnapshot{}, err
	}
	ud := ss.dashboard(user)
	ud.caps.UpdatePosition(req.Latitude, req.Longitude)
	if err := ud.dashboard.Trip.RecordMovement(req.Latitude, req.Longitude); err != nil {
		return safety.TripSnapshot{}, err
	}
	ss.publishStatus(ctx, ud)
	return ud.dashboard.Trip.Snapshot(), nil
}

// ConfirmTripPrompt answers the "are you okay?" prompt raised during a trip.
func (ss *SafetyService) ConfirmTripPrompt(ctx context.Context, user User) (safety.TripSnapshot, error) {
	flow := ss.dashboard(user).dashboard.Trip
	if err := flow.ConfirmPrompt(ctx); err != nil {
		return safety.TripSnapshot{}, err
	}
	return flow.Snapshot(), nil
}

// =================== DISTRESS ===================

func (ss *SafetyService) ListenForDistress(ctx context.Context, user User) safety.DistressSnapshot {
	detector := ss.dashboard(user).dashboard.Distress
	detector.Listen()
	return detector.Snapshot()
}

func (ss *SafetyService) ResetDistress(ctx context.Context, user User) safety.DistressSnapshot {
	detector := ss.dashboard(user).dashboard.Distress
	detector.Reset()
	return detector.Snapshot()
}

func (ss *SafetyService) AnalyzeDistress(ctx context.Context, user User, req models.AnalyzeDistressRequest) (safety.DistressVerdict, error) {
	if err := ss.validator.Validate(req); err != nil {
		return safety.DistressVerdict{}, err
	}
	return ss.dashboard(user).dashboard.Distress.Analyze(ctx, req.Sample())
}

// =================== SOS SESSION ===================

func (ss *SafetyService) Escalate(ctx context.Context, user User, req models.EscalateRequest) (safety.SessionSnapshot, error) {
	if err := ss.validator.Validate(req); err != nil {
		return safety.SessionSnapshot{}, err
	}
	ud := ss.dashboard(user)
	ud.caps.SetGrants(req.Capabilities)
	if req.Latitude != nil && req.Longitude != nil {
		ud.caps.UpdatePosition(*req.Latitude, *req.Longitude)
	}
	source := safety.SourceManual
	if req.Source != "" {
		source = safety.Source(req.Source)
	}
	return ud.dashboard.SOS.Escalate(ctx, source)
}

func (ss *SafetyService) Session(ctx context.Context, user User) safety.SessionSnapshot {
	return ss.dashboard(user).dashboard.SOS.Snapshot()
}

func (ss *SafetyService) SendMessage(ctx context.Context, user User, req models.SendMessageRequest) (safety.ChatMessage, error) {
	if err := ss.validator.Validate(req); err != nil {
		return safety.ChatMessage{}, err
	}
	return ss.dashboard(user).dashboard.SOS.SendUserMessage(ctx, req.Text)
}

func (ss *SafetyService) SendHelpMessage(ctx context.Context, user User) (safety.ChatMessage, error) {
	return ss.dashboard(user).dashboard.SOS.SendHelpMessage(ctx)
}

// AppendGuardianMessage posts into another user's open session. It never
// creates a dashboard for the protected user.
func (ss *SafetyService) AppendGuardianMessage(ctx context.Context, userID, author, text string) (safety.ChatMessage, error) {
	ud, ok := ss.peek(userID)
	if !ok {
		return safety.ChatMessage{}, safety.ErrNoActiveSession
	}
	return ud.dashboard.SOS.AppendMessage(ctx, author, text)
}

func (ss *SafetyService) ToggleRecording(ctx context.Context, user User) (*models.ToggleResponse, error) {
	sos := ss.dashboard(user).dashboard.SOS
	on, err := sos.ToggleRecording(ctx)
	if err != nil {
		return nil, err
	}
	return &models.ToggleResponse{Enabled: on, Session: sos.Snapshot()}, nil
}

func (ss *SafetyService) CapturePhoto(ctx context.Context, user User) (*models.PhotoResponse, error) {
	sos := ss.dashboard(user).dashboard.SOS
	ref, err := sos.CapturePhoto(ctx)
	if err != nil {
		return nil, err
	}
	return &models.PhotoResponse{Reference: ref, Session: sos.Snapshot()}, nil
}

func (ss *SafetyService) ToggleNightVision(ctx context.Context, user User) (*models.ToggleResponse, error) {
	ud := ss.dashboard(user)
	on, err := ud.dashboard.SOS.ToggleNightVision(ctx)
	if err != nil {
		return nil, err
	}
	ss.publishStatus(ctx, ud)
	return &models.ToggleResponse{Enabled: on, Session: ud.dashboard.SOS.Snapshot()}, nil
}

func (ss *SafetyService) ToggleVoiceControl(ctx context.Context, user User) (*models.ToggleResponse, error) {
	sos := ss.dashboard(user).dashboard.SOS
	on, err := sos.ToggleVoiceControl(ctx)
	if err != nil {
		return nil, err
	}
	return &models.ToggleResponse{Enabled: on, Session: sos.Snapshot()}, nil
}

func (ss *SafetyService) HandleVoiceCommand(ctx context.Context, user User, req models.VoiceCommandRequest) (*models.VoiceCommandResponse, error) {
	if err := ss.validator.Validate(req); err != nil {
		return nil, err
	}
	sos := ss.dashboard(user).dashboard.SOS
	cmd, err := sos.HandleVoiceCommand(ctx, req.Transcript)
	if err != nil {
		return nil, err
	}
	return &models.VoiceCommandResponse{
		Command:    string(cmd),
		Recognised: cmd != safety.VoiceUnknown,
		Session:    sos.Snapshot(),
	}, nil
}

func (ss *SafetyService) RequestSummary(ctx context.Context, user User) (safety.ChatMessage, error) {
	return ss.dashboard(user).dashboard.SOS.RequestSummary(ctx)
}

// EndSession closes the SOS session and stores it as an incident. Ending
// when nothing is open reports Ended false.
func (ss *SafetyService) EndSession(ctx context.Context, user User) (*models.EndSessionResponse, error) {
	ud := ss.dashboard(user)
	final, ended, err := ud.dashboard.SOS.End(ctx)
	if err != nil {
		return nil, err
	}
	if ended {
		ss.persistIncident(ctx, user.ID, final)
	}
	return &models.EndSessionResponse{Ended: ended, Session: final}, nil
}

func (ss *SafetyService) persistIncident(ctx context.Context, userID string, final safety.SessionSnapshot) {
	if ss.deps.Incidents == nil {
		return
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := ss.deps.Incidents.Create(storeCtx, models.NewIncident(userID, final)); err != nil {
		logrus.WithFields(logrus.Fields{"user": userID, "session": final.ID}).
			Errorf("Failed to store incident: %v", err)
	}
}

// History returns a page of past SOS sessions plus the most recent check-in outcomes.
func (ss *SafetyService) History(ctx context.Context, user User, page models.PaginationRequest) (*models.IncidentHistoryResponse, int64, error) {
	if ss.deps.Incidents == nil {
		return nil, 0, utils.NewExternalServiceError("Incident history", nil)
	}
	page.Normalize()

	incidents, total, err := ss.deps.Incidents.ListByUser(ctx, user.ID, page.Page, page.PageSize)
	if err != nil {
		return nil, 0, utils.NewDatabaseError("list incidents", err)
	}
	checkIns, err := ss.deps.Incidents.ListCheckIns(ctx, user.ID, page.PageSize)
	if err != nil {
		return nil, 0, utils.NewDatabaseError("list check-ins", err)
	}
	return &models.IncidentHistoryResponse{Incidents: incidents, CheckIns: checkIns}, total, nil
}

// =================== LIFECYCLE ===================

// ReapIdle drops dashboards that are not busy and have not been used for ttl.
func (ss *SafetyService) ReapIdle(ctx context.Context, ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	ss.mu.Lock()
	var idle []*userDashboard
	for id, ud := range ss.dashboards {
		if ud.idleSince().Before(cutoff) && !ud.dashboard.Busy() {
			idle = append(idle, ud)
			delete(ss.dashboards, id)
		}
	}
	ss.mu.Unlock()

	for _, ud := range idle {
		ss.close(ctx, ud)
	}
	return len(idle)
}

// Shutdown closes every dashboard, storing any SOS session still open.
func (ss *SafetyService) Shutdown(ctx context.Context) {
	ss.mu.Lock()
	all := make([]*userDashboard, 0, len(ss.dashboards))
	for id, ud := range ss.dashboards {
		all = append(all, ud)
		delete(ss.dashboards, id)
	}
	ss.mu.Unlock()

	for _, ud := range all {
		ss.close(ctx, ud)
	}
	logrus.Infof("Closed %d safety dashboards", len(all))
}

func (ss *SafetyService) close(ctx context.Context, ud *userDashboard) {
	metrics.ActiveDashboards.Dec()
	userID := ud.identity().ID
	if final, ended := ud.dashboard.Close(ctx); ended {
		ss.persistIncident(ctx, userID, final)
	}
}

func (ss *SafetyService) DashboardCount() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.dashboards)
}
