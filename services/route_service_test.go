package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herway/ai"
	"herway/models"
	"herway/routing"
	"herway/utils"
)

type fakeRouter struct {
	calls []routing.RouteRequest
	route *routing.Route
	err   error
}

func (f *fakeRouter) Route(_ context.Context, req routing.RouteRequest) (*routing.Route, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.route, nil
}

type fakeAI struct {
	hazards *ai.HazardReport
	score   *ai.SafetyScore
	err     error
	seen    []string
}

func (f *fakeAI) DetectHazards(_ context.Context, desc string) (*ai.HazardReport, error) {
	f.seen = append(f.seen, desc)
	return f.hazards, f.err
}

func (f *fakeAI) SafetyScore(_ context.Context, in ai.SafetyScoreInput) (*ai.SafetyScore, error) {
	f.seen = append(f.seen, in.LocationDescription)
	return f.score, f.err
}

func planRequest() models.PlanRouteRequest {
	return models.PlanRouteRequest{
		Origin:      models.RoutePoint{Latitude: 52.5200, Longitude: 13.4050},
		Destination: models.RoutePoint{Latitude: 52.5163, Longitude: 13.3777},
		Avoid:       []routing.AvoidZone{{Lat: 52.518, Lng: 13.39, Radius: 100}},
	}
}

func TestRouteService_PlanRouteUsesCache(t *testing.T) {
	points := []routing.LatLng{{Lat: 52.5200, Lng: 13.4050}, {Lat: 52.5163, Lng: 13.3777}}
	router := &fakeRouter{route: &routing.Route{Polyline: routing.EncodePolyline(points), Points: points}}
	rs := NewRouteService(router, newTestStatusCache(t), nil, nil)
	ctx := context.Background()

	first, err := rs.PlanRoute(ctx, planRequest())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "pedestrian", first.TransportMode)
	assert.Greater(t, first.DistanceM, 1000.0)
	require.Len(t, router.calls, 1)
	assert.Len(t, router.calls[0].Avoid, 1)

	second, err := rs.PlanRoute(ctx, planRequest())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Polyline, second.Polyline)
	assert.Len(t, router.calls, 1)

	other := planRequest()
	other.TransportMode = "bicycle"
	_, err = rs.PlanRoute(ctx, other)
	require.NoError(t, err)
	assert.Len(t, router.calls, 2)
}

func TestRouteService_PlanRouteErrors(t *testing.T) {
	ctx := context.Background()

	rs := NewRouteService(&fakeRouter{err: routing.ErrNoRoute}, nil, nil, nil)
	_, err := rs.PlanRoute(ctx, planRequest())
	serviceErr, ok := utils.GetServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, serviceErr.StatusCode)

	rs = NewRouteService(&fakeRouter{err: routing.ErrMissingAPIKey}, nil, nil, nil)
	_, err = rs.PlanRoute(ctx, planRequest())
	serviceErr, _ = utils.GetServiceError(err)
	assert.Equal(t, http.StatusServiceUnavailable, serviceErr.StatusCode)
	assert.ErrorIs(t, err, routing.ErrMissingAPIKey)

	same := planRequest()
	same.Destination = same.Origin
	_, err = rs.PlanRoute(ctx, same)
	serviceErr, _ = utils.GetServiceError(err)
	assert.Equal(t, http.StatusBadRequest, serviceErr.StatusCode)

	bad := planRequest()
	bad.TransportMode = "rocket"
	_, err = rs.PlanRoute(ctx, bad)
	serviceErr, _ = utils.GetServiceError(err)
	assert.Equal(t, http.StatusBadRequest, serviceErr.StatusCode)
}

func TestRouteService_HazardsOnPlannedRoute(t *testing.T) {
	points := []routing.LatLng{{Lat: 1, Lng: 1}, {Lat: 1.01, Lng: 1}}
	router := &fakeRouter{route: &routing.Route{Points: points}}
	detector := &fakeAI{hazards: &ai.HazardReport{HasHazards: true, HazardSummary: "Poorly lit underpass"}}
	rs := NewRouteService(router, nil, detector, nil)
	ctx := context.Background()

	req := planRequest()
	req.CheckHazards = true
	resp, err := rs.PlanRoute(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, resp.Hazards)
	assert.True(t, resp.Hazards.HasHazards)
	require.Len(t, detector.seen, 1)
	assert.Contains(t, detector.seen[0], "pedestrian route")

	detector.err = errors.New("model overloaded")
	resp, err = rs.PlanRoute(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, resp.Hazards)
}

func TestRouteService_SafetyScore(t *testing.T) {
	ctx := context.Background()

	rs := NewRouteService(nil, nil, nil, nil)
	_, err := rs.SafetyScore(ctx, models.SafetyScoreRequest{LocationDescription: "Main St"})
	assert.ErrorIs(t, err, ai.ErrNotConfigured)

	scorer := &fakeAI{score: &ai.SafetyScore{SafetyScore: 7, Reason: "Busy, well lit"}}
	rs = NewRouteService(nil, nil, nil, scorer)
	resp, err := rs.SafetyScore(ctx, models.SafetyScoreRequest{LocationDescription: "Main St"})
	require.NoError(t, err)
	assert.Equal(t, 7, resp.SafetyScore)

	_, err = rs.SafetyScore(ctx, models.SafetyScoreRequest{})
	assert.Error(t, err)

	scorer.err = context.DeadlineExceeded
	_, err = rs.SafetyScore(ctx, models.SafetyScoreRequest{LocationDescription: "Main St"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
