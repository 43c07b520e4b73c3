package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"herway/ai"
	"herway/models"
	"herway/routing"
	"herway/utils"
)

type Router interface {
	Route(ctx context.Context, req routing.RouteRequest) (*routing.Route, error)
}

type HazardDetector interface {
	DetectHazards(ctx context.Context, routeDescription string) (*ai.HazardReport, error)
}

type SafetyScorer interface {
	SafetyScore(ctx context.Context, in ai.SafetyScoreInput) (*ai.SafetyScore, error)
}

type RouteCache interface {
	GetRoute(ctx context.Context, key string) (*models.PlanRouteResponse, error)
	PutRoute(ctx context.Context, key string, route *models.PlanRouteResponse) error
}

// RouteService plans walking routes home and asks the AI collaborator about
// hazards and area safety.
type RouteService struct {
	router    Router
	cache     RouteCache
	hazards   HazardDetector
	scorer    SafetyScorer
	validator *utils.ValidationService
}

func NewRouteService(router Router, cache RouteCache, hazards HazardDetector, scorer SafetyScorer) *RouteService {
	return &RouteService{
		router:    router,
		cache:     cache,
		hazards:   hazards,
		scorer:    scorer,
		validator: utils.NewValidationService(),
	}
}

// routeCacheKey identifies a request by its endpoints, mode and avoid zones.
func routeCacheKey(mode string, origin, destination routing.LatLng, avoid []routing.AvoidZone) string {
	return fmt.Sprintf("%s:%s:%s", mode, routing.EncodePolyline([]routing.LatLng{origin, destination}), routing.AvoidAreas(avoid))
}

func (rs *RouteService) PlanRoute(ctx context.Context, req models.PlanRouteRequest) (*models.PlanRouteResponse, error) {
	if err := rs.validator.Validate(req); err != nil {
		return nil, err
	}
	mode := req.TransportMode
	if mode == "" {
		mode = "pedestrian"
	}
	origin, destination := req.Origin.LatLng(), req.Destination.LatLng()
	if origin == destination {
		return nil, utils.NewBadRequestError("Origin and destination are the same")
	}

	key := routeCacheKey(mode, origin, destination, req.Avoid)
	resp := rs.cachedRoute(ctx, key)
	if resp == nil {
		var err error
		if resp, err = rs.fetchRoute(ctx, key, mode, origin, destination, req.Avoid); err != nil {
			return nil, err
		}
	}

	if req.CheckHazards {
		description := req.Description
		if description == "" {
			description = fmt.Sprintf("%s route of %.0f meters from %.5f,%.5f to %.5f,%.5f",
				mode, resp.DistanceM, origin.Lat, origin.Lng, destination.Lat, destination.Lng)
		}
		report, err := rs.DetectHazards(ctx, models.HazardRequest{RouteDescription: description})
		if err != nil {
			// the route itself is still useful without the report
			logrus.Warnf("Hazard check failed for planned route: %v", err)
		} else {
			resp.Hazards = report
		}
	}
	return resp, nil
}

func (rs *RouteService) cachedRoute(ctx context.Context, key string) *models.PlanRouteResponse {
	if rs.cache == nil {
		return nil
	}
	resp, err := rs.cache.GetRoute(ctx, key)
	if err != nil {
		logrus.Warnf("Route cache read failed: %v", err)
		return nil
	}
	if resp != nil {
		resp.Cached = true
	}
	return resp
}

func (rs *RouteService) fetchRoute(ctx context.Context, key, mode string, origin, destination routing.LatLng, avoid []routing.AvoidZone) (*models.PlanRouteResponse, error) {
	if rs.router == nil {
		return nil, utils.NewExternalServiceError("Routing", routing.ErrMissingAPIKey)
	}
	route, err := rs.router.Route(ctx, routing.RouteRequest{
		Origin:        origin,
		Destination:   destination,
		TransportMode: mode,
		Avoid:         avoid,
	})
	switch {
	case errors.Is(err, routing.ErrNoRoute):
		return nil, utils.NewNotFoundError("Route")
	case errors.Is(err, routing.ErrMissingAPIKey):
		return nil, utils.NewExternalServiceError("Routing", err)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case err != nil:
		return nil, utils.NewExternalServiceError("Routing", err)
	}

	resp := &models.PlanRouteResponse{
		Polyline:      route.Polyline,
		Points:        route.Points,
		TransportMode: mode,
		DistanceM:     routing.PathLength(route.Points),
	}
	if rs.cache != nil {
		if err := rs.cache.PutRoute(ctx, key, resp); err != nil {
			logrus.Warnf("Route cache write failed: %v", err)
		}
	}
	return resp, nil
}

func (rs *RouteService) DetectHazards(ctx context.Context, req models.HazardRequest) (*models.HazardResponse, error) {
	if err := rs.validator.Validate(req); err != nil {
		return nil, err
	}
	if rs.hazards == nil {
		return nil, utils.NewExternalServiceError("Hazard detection", ai.ErrNotConfigured)
	}
	report, err := rs.hazards.DetectHazards(ctx, req.RouteDescription)
	if err != nil {
		return nil, aiError("Hazard detection", err)
	}
	return &models.HazardResponse{HasHazards: report.HasHazards, HazardSummary: report.HazardSummary}, nil
}

func (rs *RouteService) SafetyScore(ctx context.Context, req models.SafetyScoreRequest) (*models.SafetyScoreResponse, error) {
	if err := rs.validator.Validate(req); err != nil {
		return nil, err
	}
	if rs.scorer == nil {
		return nil, utils.NewExternalServiceError("Safety scoring", ai.ErrNotConfigured)
	}
	score, err := rs.scorer.SafetyScore(ctx, ai.SafetyScoreInput{
		LocationDescription: req.LocationDescription,
		CrimeData:           req.CrimeData,
		NewsData:            req.NewsData,
		UserReports:         req.UserReports,
	})
	if err != nil {
		return nil, aiError("Safety scoring", err)
	}
	return &models.SafetyScoreResponse{SafetyScore: score.SafetyScore, Reason: score.Reason}, nil
}

func aiError(service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return utils.NewExternalServiceError(service, err)
}
