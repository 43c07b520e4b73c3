package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"herway/models"
	"herway/repositories"
	"herway/safety"
)

type sentFrame struct {
	userID  string
	msgType string
	data    interface{}
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	user     []sentFrame
	watchers []sentFrame
}

func (b *fakeBroadcaster) SendToUser(userID, msgType string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user = append(b.user, sentFrame{userID, msgType, data})
}

func (b *fakeBroadcaster) SendToWatchers(userID, msgType string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers = append(b.watchers, sentFrame{userID, msgType, data})
}

func (b *fakeBroadcaster) watcherEvents() []safety.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var types []safety.EventType
	for _, f := range b.watchers {
		if frame, ok := f.data.(models.WSSafetyEvent); ok {
			types = append(types, frame.Event.(safety.Event).Type)
		}
	}
	return types
}

type fakeIncidents struct {
	mu        sync.Mutex
	incidents []models.Incident
	checkIns  []models.CheckInLog
}

func (f *fakeIncidents) Create(_ context.Context, incident *models.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	incident.ID = primitive.NewObjectID()
	f.incidents = append(f.incidents, *incident)
	return nil
}

func (f *fakeIncidents) ListByUser(_ context.Context, userID string, page, pageSize int) ([]models.Incident, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Incident
	for _, inc := range f.incidents {
		if inc.UserID == userID {
			out = append(out, inc)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeIncidents) LogCheckIn(_ context.Context, entry *models.CheckInLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIns = append(f.checkIns, *entry)
	return nil
}

func (f *fakeIncidents) ListCheckIns(_ context.Context, userID string, limit int) ([]models.CheckInLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CheckInLog
	for _, c := range f.checkIns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeIncidents) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.checkIns {
		out = append(out, c.Outcome)
	}
	return out
}

type recordedAlert struct {
	user  User
	event safety.Event
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (f *fakeAlerter) Alert(_ context.Context, user User, event safety.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, recordedAlert{user, event})
}

func (f *fakeAlerter) types() []safety.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []safety.EventType
	for _, a := range f.alerts {
		out = append(out, a.event.Type)
	}
	return out
}

type fakeGuardians struct {
	mu        sync.Mutex
	guardians []models.Guardian
}

func (f *fakeGuardians) Create(_ context.Context, g *models.Guardian) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ID = primitive.NewObjectID()
	g.CreatedAt = time.Now()
	f.guardians = append(f.guardians, *g)
	return nil
}

func (f *fakeGuardians) ListByUser(_ context.Context, userID string) ([]models.Guardian, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Guardian{}
	for _, g := range f.guardians {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGuardians) ListProtectedBy(_ context.Context, guardianUserID string) ([]models.Guardian, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Guardian{}
	for _, g := range f.guardians {
		if g.GuardianUserID == guardianUserID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGuardians) IsGuardianOf(_ context.Context, guardianUserID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.guardians {
		if g.UserID == userID && g.GuardianUserID == guardianUserID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGuardians) Delete(_ context.Context, userID, guardianID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := primitive.ObjectIDFromHex(guardianID)
	if err != nil {
		return repositories.ErrInvalidID
	}
	for i, g := range f.guardians {
		if g.ID == id && g.UserID == userID {
			f.guardians = append(f.guardians[:i], f.guardians[i+1:]...)
			return nil
		}
	}
	return repositories.ErrGuardianNotFound
}

type fakeQueue struct {
	mu     sync.Mutex
	alerts []*models.GuardianAlert
	err    error
}

func (q *fakeQueue) Enqueue(alert *models.GuardianAlert) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.alerts = append(q.alerts, alert)
	return nil
}

type fakeSummarizer struct{ summary string }

func (f fakeSummarizer) Summarize(context.Context, string) (string, error) {
	return f.summary, nil
}

// manualConfig disables the background tickers so tests drive countdowns.
func manualConfig() safety.DashboardConfig {
	cfg := safety.DefaultDashboardConfig()
	cfg.Confirmation.TickInterval = 0
	cfg.Confirmation.TotalSeconds = 3
	cfg.CheckIn.TickInterval = 0
	cfg.CheckIn.TotalSeconds = 3
	cfg.Trip.TickInterval = 0
	return cfg
}

func newTestStatusCache(t *testing.T) *repositories.StatusCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repositories.NewStatusCache(client, time.Hour, time.Minute)
}

type testEnv struct {
	service     *SafetyService
	incidents   *fakeIncidents
	alerter     *fakeAlerter
	broadcaster *fakeBroadcaster
	status      *repositories.StatusCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		incidents:   &fakeIncidents{},
		alerter:     &fakeAlerter{},
		broadcaster: &fakeBroadcaster{},
		status:      newTestStatusCache(t),
	}
	env.service = NewSafetyService(manualConfig(), SafetyServiceDeps{
		Incidents:   env.incidents,
		Status:      env.status,
		Broadcaster: env.broadcaster,
		Guardians:   env.alerter,
		Summarizer:  fakeSummarizer{summary: "User is walking home and feels followed."},
	})
	t.Cleanup(func() { env.service.Shutdown(context.Background()) })
	return env
}
