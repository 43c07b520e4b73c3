package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herway/safety"
)

// fakeCompletions answers every request with content and records the last request body.
func fakeCompletions(t *testing.T, status int, content string, got *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(content))
			return
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/", APIKey: "test-key", Model: "test-model"})
}

func TestSummarize(t *testing.T) {
	var got chatRequest
	srv := fakeCompletions(t, http.StatusOK, `{"summary":"Guardian is en route."}`, &got)
	defer srv.Close()

	summary, err := newTestClient(srv.URL).Summarize(context.Background(), "You: help\nJohn (Guardian): I'm on my way.")
	require.NoError(t, err)
	assert.Equal(t, "Guardian is en route.", summary)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "John (Guardian): I'm on my way.")
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	summary, err := NewClient(Config{}).Summarize(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, emptySummary, summary)
}

func TestConfirmDistress_FencedJSON(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, "```json\n{\"isDistressConfirmed\":true,\"distressReason\":\"glass breaking\"}\n```", nil)
	defer srv.Close()

	verdict, err := newTestClient(srv.URL).ConfirmDistress(context.Background(), safety.SensorSample{AudioDataURI: "data:,"})
	require.NoError(t, err)
	assert.True(t, verdict.Confirmed)
	assert.Equal(t, "glass breaking", verdict.Reason)
}

func TestDetectHazards(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, `{"hasHazards":true,"hazardSummary":"Protest on Main St."}`, nil)
	defer srv.Close()

	report, err := newTestClient(srv.URL).DetectHazards(context.Background(), "Main St to Park Ave")
	require.NoError(t, err)
	assert.True(t, report.HasHazards)
	assert.Equal(t, "Protest on Main St.", report.HazardSummary)
}

func TestSafetyScore(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, `{"safetyScore":7.6,"reason":"Well lit, low crime."}`, nil)
	defer srv.Close()

	score, err := newTestClient(srv.URL).SafetyScore(context.Background(), SafetyScoreInput{LocationDescription: "Main St"})
	require.NoError(t, err)
	assert.Equal(t, 8, score.SafetyScore)

	bad := fakeCompletions(t, http.StatusOK, `{"safetyScore":42,"reason":"?"}`, nil)
	defer bad.Close()
	_, err = newTestClient(bad.URL).SafetyScore(context.Background(), SafetyScoreInput{LocationDescription: "x"})
	assert.ErrorIs(t, err, ErrScoreOutOfRange)
}

func TestClient_Errors(t *testing.T) {
	_, err := NewClient(Config{}).DetectHazards(context.Background(), "route")
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := fakeCompletions(t, http.StatusTooManyRequests, `{"error":"rate limited"}`, nil)
	defer srv.Close()
	_, err = newTestClient(srv.URL).Summarize(context.Background(), "You: hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	garbage := fakeCompletions(t, http.StatusOK, `not json`, nil)
	defer garbage.Close()
	_, err = newTestClient(garbage.URL).Summarize(context.Background(), "You: hi")
	assert.Error(t, err)
}
