package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"herway/models"
	"herway/repositories"
	"herway/safety"
	"herway/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryGuardians struct {
	mu        sync.Mutex
	guardians []models.Guardian
}

func (m *memoryGuardians) Create(_ context.Context, g *models.Guardian) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = primitive.NewObjectID()
	m.guardians = append(m.guardians, *g)
	return nil
}

func (m *memoryGuardians) ListByUser(_ context.Context, userID string) ([]models.Guardian, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Guardian{}
	for _, g := range m.guardians {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memoryGuardians) ListProtectedBy(_ context.Context, guardianUserID string) ([]models.Guardian, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Guardian{}
	for _, g := range m.guardians {
		if g.GuardianUserID == guardianUserID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memoryGuardians) IsGuardianOf(_ context.Context, guardianUserID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guardians {
		if g.UserID == userID && g.GuardianUserID == guardianUserID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryGuardians) Delete(_ context.Context, userID, guardianID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.guardians {
		if g.ID.Hex() == guardianID && g.UserID == userID {
			m.guardians = append(m.guardians[:i], m.guardians[i+1:]...)
			return nil
		}
	}
	return repositories.ErrGuardianNotFound
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	router *gin.Engine
}

// newTestServer mounts the safety, SOS and guardian controllers behind a stub
// that trusts the X-User header.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := safety.DefaultDashboardConfig()
	cfg.Confirmation.TickInterval = 0
	cfg.CheckIn.TickInterval = 0
	cfg.Trip.TickInterval = 0

	safetyService := services.NewSafetyService(cfg, services.SafetyServiceDeps{})
	t.Cleanup(func() { safetyService.Shutdown(context.Background()) })
	guardianService := services.NewGuardianService(&memoryGuardians{}, safetyService, nil)

	safetyController := NewSafetyController(safetyService)
	sosController := NewSOSController(safetyService, guardianService)
	guardianController := NewGuardianController(guardianService)

	r := gin.New()
	api := r.Group("/api/v1", func(c *gin.Context) {
		if id := c.GetHeader("X-User"); id != "" {
			c.Set("userID", id)
			c.Set("userName", c.GetHeader("X-User-Name"))
		}
		c.Next()
	})
	api.GET("/safety/status", safetyController.GetStatus)
	api.POST("/safety/emergency/arm", safetyController.ArmEmergency)
	api.POST("/safety/emergency/cancel", safetyController.CancelEmergency)
	api.POST("/safety/checkin/start", safetyController.StartCheckIn)
	api.POST("/safety/checkin/mark-safe", safetyController.MarkSafe)
	api.POST("/safety/trip/movement", safetyController.RecordMovement)
	api.POST("/sos/escalate", sosController.Escalate)
	api.GET("/sos", sosController.GetSession)
	api.POST("/sos/messages", sosController.SendMessage)
	api.POST("/sos/guardian-messages", sosController.PostGuardianMessage)
	api.POST("/sos/voice-control", sosController.ToggleVoiceControl)
	api.POST("/sos/voice", sosController.VoiceCommand)
	api.POST("/sos/end", sosController.EndSession)
	api.GET("/sos/history", sosController.GetHistory)
	api.GET("/guardians", guardianController.GetGuardians)
	api.POST("/guardians", guardianController.AddGuardian)
	api.DELETE("/guardians/:guardianId", guardianController.RemoveGuardian)
	api.GET("/guardians/protected", guardianController.GetProtectedUsers)

	return &testServer{router: r}
}

func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) (int, apiEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
		req.Header.Set("X-User-Name", "Ana")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env apiEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestSafetyController_RequiresUser(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/safety/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
}

func TestSafetyController_ArmAndCancel(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/safety/emergency/arm", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	armed := decode[safety.ConfirmationSnapshot](t, env.Data)
	assert.Equal(t, safety.ConfirmationCounting, armed.State)

	code, env = s.do(t, http.MethodPost, "/api/v1/safety/emergency/cancel", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	cancelled := decode[safety.ConfirmationSnapshot](t, env.Data)
	assert.Equal(t, safety.ConfirmationIdle, cancelled.State)
	assert.False(t, cancelled.Countdown.IsActive)

	code, env = s.do(t, http.MethodPost, "/api/v1/safety/emergency/arm", "user-ana", map[string]string{"trigger": "shake"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestSafetyController_MarkSafeWithoutCheckIn(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/safety/checkin/start", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/safety/checkin/mark-safe", "user-ana", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/safety/trip/movement", "user-ana", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSOSController_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/sos/messages", "user-ana", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NO_ACTIVE_SESSION", env.Error.Code)

	code, env = s.do(t, http.MethodPost, "/api/v1/sos/escalate", "user-ana", map[string]interface{}{"source": "manual"})
	require.Equal(t, http.StatusOK, code)
	session := decode[safety.SessionSnapshot](t, env.Data)
	assert.Equal(t, safety.SOSActive, session.State)
	assert.NotEmpty(t, session.ID)

	code, _ = s.do(t, http.MethodPost, "/api/v1/sos/messages", "user-ana", map[string]string{"text": "someone is following me"})
	assert.Equal(t, http.StatusCreated, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/sos/voice-control", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[models.ToggleResponse](t, env.Data).Enabled)

	code, env = s.do(t, http.MethodPost, "/api/v1/sos/voice", "user-ana", map[string]string{"transcript": "please send help message"})
	require.Equal(t, http.StatusOK, code)
	voice := decode[models.VoiceCommandResponse](t, env.Data)
	assert.True(t, voice.Recognised)
	assert.Equal(t, string(safety.VoiceSendHelp), voice.Command)

	code, env = s.do(t, http.MethodGet, "/api/v1/sos", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.ID, decode[safety.SessionSnapshot](t, env.Data).ID)

	code, env = s.do(t, http.MethodPost, "/api/v1/sos/end", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[models.EndSessionResponse](t, env.Data).Ended)

	code, env = s.do(t, http.MethodPost, "/api/v1/sos/end", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[models.EndSessionResponse](t, env.Data).Ended)

	// no incident store configured
	code, _ = s.do(t, http.MethodGet, "/api/v1/sos/history", "user-ana", nil)
	assert.GreaterOrEqual(t, code, http.StatusInternalServerError)
}

func TestGuardianController_AddListRemove(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/guardians", "user-ana", map[string]string{"name": "Mom"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/guardians", "user-ana", map[string]string{
		"name":           "Mom",
		"relation":       "mother",
		"guardianUserId": "user-mom",
	})
	require.Equal(t, http.StatusCreated, code)
	guardian := decode[models.Guardian](t, env.Data)

	code, env = s.do(t, http.MethodGet, "/api/v1/guardians", "user-ana", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Guardian](t, env.Data), 1)

	code, env = s.do(t, http.MethodGet, "/api/v1/guardians/protected", "user-mom", nil)
	require.Equal(t, http.StatusOK, code)
	protected := decode[[]models.ProtectedUserStatus](t, env.Data)
	require.Len(t, protected, 1)
	assert.Equal(t, "user-ana", protected[0].UserID)

	// a stranger may not write into Ana's session
	code, _ = s.do(t, http.MethodPost, "/api/v1/sos/guardian-messages", "user-eve", map[string]string{"userId": "user-ana", "text": "hi"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/guardians/"+guardian.ID.Hex(), "user-ana", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/v1/guardians/"+guardian.ID.Hex(), "user-ana", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthController(t *testing.T) {
	healthy := NewHealthController("test", map[string]HealthCheck{
		"mongodb": func(context.Context) error { return nil },
		"twilio":  nil,
	}, nil, func() int { return 2 })

	r := gin.New()
	r.GET("/health", healthy.HealthCheck)
	r.GET("/health/detailed", healthy.DetailedHealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"twilio":"disabled"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	assert.Contains(t, w.Body.String(), `"activeDashboards":2`)

	down := NewHealthController("test", map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}, nil, nil)
	r = gin.New()
	r.GET("/health", down.HealthCheck)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}
