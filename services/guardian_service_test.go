package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herway/models"
	"herway/safety"
	"herway/utils"
)

func TestGuardianService_AddListRemove(t *testing.T) {
	store := &fakeGuardians{}
	gs := NewGuardianService(store, nil, nil)
	ctx := context.Background()

	_, err := gs.AddGuardian(ctx, ana.ID, models.CreateGuardianRequest{Name: "Mom"})
	serviceErr, ok := utils.GetServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, serviceErr.StatusCode)

	_, err = gs.AddGuardian(ctx, ana.ID, models.CreateGuardianRequest{Name: "Me", GuardianUserID: ana.ID})
	assert.Error(t, err)

	g, err := gs.AddGuardian(ctx, ana.ID, models.CreateGuardianRequest{
		Name:  " Mom ",
		Phone: "+15551234567",
		Email: "Mom@Example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Mom", g.Name)
	assert.Equal(t, "mom@example.com", g.Email)
	assert.Equal(t, models.GuardianChannels{SMS: true, Email: true}, g.Channels)

	list, err := gs.ListGuardians(ctx, ana.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	err = gs.RemoveGuardian(ctx, ana.ID, "not-an-id")
	serviceErr, _ = utils.GetServiceError(err)
	assert.Equal(t, http.StatusBadRequest, serviceErr.StatusCode)

	err = gs.RemoveGuardian(ctx, "someone-else", g.ID.Hex())
	serviceErr, _ = utils.GetServiceError(err)
	assert.Equal(t, http.StatusNotFound, serviceErr.StatusCode)

	require.NoError(t, gs.RemoveGuardian(ctx, ana.ID, g.ID.Hex()))
	list, err = gs.ListGuardians(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGuardianService_GuardianMessages(t *testing.T) {
	env := newTestEnv(t)
	store := &fakeGuardians{}
	gs := NewGuardianService(store, env.service, env.status)
	ctx := context.Background()
	mom := User{ID: "user-mom", Name: "Mom"}

	_, err := gs.AddGuardian(ctx, ana.ID, models.CreateGuardianRequest{Name: "Mom", GuardianUserID: mom.ID})
	require.NoError(t, err)
	_, err = env.service.Escalate(ctx, ana, models.EscalateRequest{})
	require.NoError(t, err)

	msg, err := gs.PostGuardianMessage(ctx, mom, models.GuardianMessageRequest{UserID: ana.ID, QuickAction: "on_my_way"})
	require.NoError(t, err)
	assert.Equal(t, OnMyWayMessage, msg.Text)
	assert.Equal(t, "Mom (Guardian)", msg.Author)

	stranger := User{ID: "user-stranger"}
	_, err = gs.PostGuardianMessage(ctx, stranger, models.GuardianMessageRequest{UserID: ana.ID, Text: "hi"})
	serviceErr, ok := utils.GetServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, serviceErr.StatusCode)

	_, err = gs.PostGuardianMessage(ctx, mom, models.GuardianMessageRequest{UserID: ana.ID})
	assert.Error(t, err)

	transcript := env.service.Session(ctx, ana).Transcript
	assert.Equal(t, OnMyWayMessage, transcript[len(transcript)-1].Text)
}

func TestGuardianService_ProtectedUsers(t *testing.T) {
	env := newTestEnv(t)
	store := &fakeGuardians{}
	gs := NewGuardianService(store, env.service, env.status)
	ctx := context.Background()

	_, err := gs.AddGuardian(ctx, ana.ID, models.CreateGuardianRequest{Name: "Mom", Relation: "mother", GuardianUserID: "user-mom"})
	require.NoError(t, err)
	_, err = gs.AddGuardian(ctx, "user-cara", models.CreateGuardianRequest{Name: "Mom", GuardianUserID: "user-mom"})
	require.NoError(t, err)
	require.NoError(t, env.status.PutStatus(ctx, &models.SafetyStatus{UserID: "user-cara", UserName: "Cara", TripState: safety.TripActive}))
	require.NoError(t, env.status.SetOnline(ctx, "user-cara", true))

	_, err = env.service.Escalate(ctx, ana, models.EscalateRequest{})
	require.NoError(t, err)

	rows, err := gs.ProtectedUsers(ctx, "user-mom")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ana.ID, rows[0].UserID)
	assert.Equal(t, "Ana", rows[0].Name)
	assert.Equal(t, "mother", rows[0].Relation)
	require.NotNil(t, rows[0].Status)
	assert.True(t, rows[0].Status.SOSActive)
	assert.False(t, rows[0].Online)

	assert.Equal(t, "Cara", rows[1].Name)
	assert.Equal(t, safety.TripActive, rows[1].Status.TripState)
	assert.True(t, rows[1].Online)

	ok, err := gs.CanWatch(ctx, "user-mom", ana.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = gs.CanWatch(ctx, "user-stranger", ana.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuardianNotifier_QueuesOneAlertPerGuardian(t *testing.T) {
	store := &fakeGuardians{}
	queue := &fakeQueue{}
	notifier := NewGuardianNotifier(store, queue)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &models.Guardian{UserID: ana.ID, Name: "Mom"}))
	require.NoError(t, store.Create(ctx, &models.Guardian{UserID: ana.ID, Name: "Dad"}))

	notifier.Alert(ctx, ana, safety.Event{Type: safety.EventTripStarted})
	assert.Empty(t, queue.alerts)

	notifier.Alert(ctx, ana, safety.Event{
		Type:   safety.EventSOSStarted,
		Title:  "SOS Mode Activated",
		Source: safety.SourceCheckIn,
		Data:   map[string]interface{}{"sessionId": "sess-1"},
	})
	require.Len(t, queue.alerts, 2)
	alert := queue.alerts[0]
	assert.Equal(t, "Mom", alert.Guardian.Name)
	assert.Equal(t, "sos_started", alert.EventType)
	assert.Equal(t, "sess-1", alert.Data["sessionId"])
	assert.Equal(t, "Ana", alert.Data["userName"])
	assert.Equal(t, "checkin", alert.Data["source"])

	queue.err = errors.New("queue full")
	notifier.Alert(ctx, ana, safety.Event{Type: safety.EventCheckInMissed})
	assert.Len(t, queue.alerts, 2)
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []utils.SMSMessage
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, sms utils.SMSMessage) (*utils.NotificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sms)
	return &utils.NotificationResult{Success: true}, nil
}

type fakePush struct {
	mu     sync.Mutex
	tokens []string
	last   utils.PushNotification
	err    error
}

func (f *fakePush) SendPush(_ context.Context, token string, n utils.PushNotification) (*utils.NotificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tokens = append(f.tokens, token)
	f.last = n
	return &utils.NotificationResult{Success: true}, nil
}

func TestGuardianDelivery(t *testing.T) {
	sms := &fakeSMS{}
	push := &fakePush{}
	delivery := NewGuardianDelivery(utils.NotificationSenders{SMS: sms, Push: push})
	ctx := context.Background()

	alert := &models.GuardianAlert{
		ID:        "a1",
		UserID:    ana.ID,
		Title:     "Check-in Missed!",
		EventType: string(safety.EventCheckInMissed),
		Data:      map[string]string{"userName": "Ana", "sessionId": "sess-1"},
		Guardian: models.Guardian{
			Name:      "Mom",
			Phone:     "+15551234567",
			Email:     "mom@example.com",
			PushToken: "token-1",
			Channels:  models.GuardianChannels{SMS: true, Push: true, Email: true},
		},
	}
	require.NoError(t, delivery.Deliver(ctx, alert))
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "Her-Way alert for Ana: Check-in Missed!", sms.sent[0].Message)
	assert.Equal(t, []string{"token-1"}, push.tokens)
	assert.True(t, push.last.Critical)
	assert.Equal(t, "sess-1", push.last.Data["sessionId"])

	push.err = errors.New("fcm down")
	assert.NoError(t, delivery.Deliver(ctx, alert))

	sms.err = errors.New("twilio down")
	assert.Error(t, delivery.Deliver(ctx, alert))

	alert.Guardian.Channels = models.GuardianChannels{}
	assert.NoError(t, delivery.Deliver(ctx, alert))
}
