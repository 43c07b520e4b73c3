package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herway/models"
)

type fakeHandler struct {
	mu        sync.Mutex
	guardians map[string]string // guardian -> protected user
	presence  []string
	voiceErr  error
}

func (f *fakeHandler) VoiceTranscript(_ context.Context, userID, transcript string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	return map[string]string{"userId": userID, "heard": transcript}, nil
}

func (f *fakeHandler) ChatMessage(_ context.Context, userID, text string) (interface{}, error) {
	return map[string]string{"author": userID, "text": text}, nil
}

func (f *fakeHandler) Status(_ context.Context, userID string) (interface{}, error) {
	return map[string]interface{}{"userId": userID, "sosActive": false}, nil
}

func (f *fakeHandler) CanWatch(_ context.Context, watcherID, userID string) (bool, error) {
	return f.guardians[watcherID] == userID, nil
}

func (f *fakeHandler) Presence(_ context.Context, userID string, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := "offline"
	if online {
		state = "online"
	}
	f.presence = append(f.presence, userID+":"+state)
}

func (f *fakeHandler) presenceLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.presence...)
}

type frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	UserID    string          `json:"userId"`
	Success   bool            `json:"success"`
	Error     string          `json:"error"`
	RequestID string          `json:"requestId"`
}

func startHub(t *testing.T, handler InboundHandler) (*Hub, string) {
	t.Helper()
	hub := NewHub(handler, nil)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user")
		assert.NoError(t, hub.Serve(w, r, user, user))
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	status := readFrame(t, conn)
	require.Equal(t, models.WSTypeConnectionStatus, status.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, reqType, requestID string, data map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(models.WSRequest{Type: reqType, RequestID: requestID, Data: data}))
}

func TestHub_RequestsAndReplies(t *testing.T) {
	handler := &fakeHandler{}
	_, url := startHub(t, handler)
	conn := dial(t, url, "ana")

	send(t, conn, models.WSRequestPing, "r1", nil)
	pong := readFrame(t, conn)
	assert.Equal(t, models.WSTypePong, pong.Type)
	assert.Equal(t, "r1", pong.RequestID)

	send(t, conn, models.WSRequestVoiceTranscript, "r2", map[string]interface{}{"transcript": "start recording"})
	reply := readFrame(t, conn)
	assert.True(t, reply.Success)
	assert.Equal(t, "r2", reply.RequestID)
	assert.Contains(t, string(reply.Data), "start recording")

	send(t, conn, models.WSRequestChatMessage, "r3", map[string]interface{}{"text": "  "})
	reply = readFrame(t, conn)
	assert.False(t, reply.Success)
	assert.Contains(t, string(reply.Data), models.WSErrorInvalidMessage)

	handler.mu.Lock()
	handler.voiceErr = errors.New("boom")
	handler.mu.Unlock()
	send(t, conn, models.WSRequestVoiceTranscript, "r4", map[string]interface{}{"transcript": "help"})
	reply = readFrame(t, conn)
	assert.False(t, reply.Success)
	assert.Equal(t, "Request failed", reply.Error)

	send(t, conn, "teleport", "r5", nil)
	reply = readFrame(t, conn)
	assert.Equal(t, "Unknown message type", reply.Error)
}

func TestHub_SendToUserReachesEveryDevice(t *testing.T) {
	hub, url := startHub(t, &fakeHandler{})
	phone := dial(t, url, "ana")
	watch := dial(t, url, "ana")

	require.Eventually(t, func() bool { return hub.Stats().TotalConnections == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.Stats().ConnectedUsers)
	assert.True(t, hub.IsUserOnline("ana"))

	hub.SendToUser("ana", models.WSTypeSafetyEvent, map[string]string{"type": "sos_started"})
	for _, conn := range []*websocket.Conn{phone, watch} {
		f := readFrame(t, conn)
		assert.Equal(t, models.WSTypeSafetyEvent, f.Type)
		assert.Equal(t, "ana", f.UserID)
	}
}

func TestHub_GuardianWatching(t *testing.T) {
	handler := &fakeHandler{guardians: map[string]string{"mom": "ana"}}
	hub, url := startHub(t, handler)
	_ = dial(t, url, "ana")
	mom := dial(t, url, "mom")
	stranger := dial(t, url, "eve")

	send(t, stranger, models.WSRequestWatch, "w0", map[string]interface{}{"userId": "ana"})
	denied := readFrame(t, stranger)
	assert.False(t, denied.Success)
	assert.Contains(t, string(denied.Data), models.WSErrorForbidden)

	send(t, mom, models.WSRequestWatch, "w1", map[string]interface{}{"userId": "ana"})
	ack := readFrame(t, mom)
	require.True(t, ack.Success)
	assert.Contains(t, string(ack.Data), `"watching":"ana"`)
	assert.Equal(t, 1, hub.Stats().WatchedUsers)
	assert.Equal(t, 1, hub.Stats().Watchers)

	hub.SendToWatchers("ana", models.WSTypeGuardianEvent, map[string]string{"type": "checkin_missed"})
	event := readFrame(t, mom)
	assert.Equal(t, models.WSTypeGuardianEvent, event.Type)
	assert.Equal(t, "ana", event.UserID)

	send(t, mom, models.WSRequestUnwatch, "w2", map[string]interface{}{"userId": "ana"})
	ack = readFrame(t, mom)
	assert.True(t, ack.Success)
	assert.Equal(t, 0, hub.Stats().WatchedUsers)
	assert.Equal(t, 0, hub.Stats().Watchers)
}

func TestHub_PresenceFollowsFirstAndLastDevice(t *testing.T) {
	handler := &fakeHandler{}
	hub, url := startHub(t, handler)

	first := dial(t, url, "ana")
	second := dial(t, url, "ana")
	require.Eventually(t, func() bool { return hub.Stats().TotalConnections == 2 }, time.Second, 10*time.Millisecond)

	first.Close()
	require.Eventually(t, func() bool { return hub.Stats().TotalConnections == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ana:online"}, handler.presenceLog())

	second.Close()
	require.Eventually(t, func() bool { return !hub.IsUserOnline("ana") }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(handler.presenceLog()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ana:online", "ana:offline"}, handler.presenceLog())
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.herway.io/"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.herway.io")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
