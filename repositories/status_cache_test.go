package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herway/models"
	"herway/routing"
	"herway/safety"
)

func newTestCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatusCache(client, time.Hour, time.Minute), mr
}

func TestStatusCache_PutGet(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	missing, err := cache.GetStatus(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	status := &models.SafetyStatus{
		UserID:       "user-1",
		SOSActive:    true,
		SOSSessionID: "sess-1",
		TripState:    safety.TripActive,
		Destination:  "Home",
		LastPosition: &safety.Position{Lat: 51.5, Lng: -0.12},
	}
	require.NoError(t, cache.PutStatus(ctx, status))
	assert.NotZero(t, status.UpdatedAt)
	assert.Equal(t, time.Hour, mr.TTL(statusKey("user-1")))

	got, err := cache.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SOSActive)
	assert.Equal(t, "Home", got.Destination)
	assert.InDelta(t, 51.5, got.LastPosition.Lat, 1e-9)

	require.NoError(t, cache.DeleteStatus(ctx, "user-1"))
	got, err = cache.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatusCache_GetStatuses(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PutStatus(ctx, &models.SafetyStatus{UserID: "a", SOSActive: true}))
	require.NoError(t, cache.PutStatus(ctx, &models.SafetyStatus{UserID: "b"}))
	require.NoError(t, mr.Set(statusKey("c"), "{not json"))

	statuses, err := cache.GetStatuses(ctx, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
	assert.True(t, statuses["a"].SOSActive)
	assert.False(t, statuses["b"].SOSActive)

	empty, err := cache.GetStatuses(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStatusCache_StatusExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PutStatus(ctx, &models.SafetyStatus{UserID: "a"}))
	mr.FastForward(2 * time.Hour)

	got, err := cache.GetStatus(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatusCache_Online(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetOnline(ctx, "a", true))
	online, err := cache.IsOnline(ctx, "a")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, cache.SetOnline(ctx, "a", false))
	online, err = cache.IsOnline(ctx, "a")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestStatusCache_Routes(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	route, err := cache.GetRoute(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, route)

	require.NoError(t, cache.PutRoute(ctx, "k", &models.PlanRouteResponse{
		Polyline:      "_p~iF~ps|U",
		Points:        []routing.LatLng{{Lat: 38.5, Lng: -120.2}},
		TransportMode: "pedestrian",
	}))
	assert.Equal(t, time.Minute, mr.TTL(routeKeyPrefix+"k"))

	route, err = cache.GetRoute(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, "pedestrian", route.TransportMode)
	assert.Len(t, route.Points, 1)
}
