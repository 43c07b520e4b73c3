package models

import "herway/routing"

type PlanRouteRequest struct {
	Origin        RoutePoint          `json:"origin"`
	Destination   RoutePoint          `json:"destination"`
	TransportMode string              `json:"transportMode,omitempty" validate:"omitempty,transport_mode"`
	Avoid         []routing.AvoidZone `json:"avoid,omitempty" validate:"max=20,dive"`
	// CheckHazards asks for a hazard report on the planned route.
	CheckHazards bool   `json:"checkHazards,omitempty"`
	Description  string `json:"description,omitempty" validate:"max=500"`
}

type RoutePoint struct {
	Latitude  float64 `json:"latitude" validate:"coordinate"`
	Longitude float64 `json:"longitude" validate:"coordinate"`
}

func (p RoutePoint) LatLng() routing.LatLng {
	return routing.LatLng{Lat: p.Latitude, Lng: p.Longitude}
}

type PlanRouteResponse struct {
	Polyline      string           `json:"polyline"`
	Points        []routing.LatLng `json:"points"`
	TransportMode string           `json:"transportMode"`
	DistanceM     float64          `json:"distanceMeters"`
	Cached        bool             `json:"cached"`
	Hazards       *HazardResponse  `json:"hazards,omitempty"`
}

type HazardRequest struct {
	RouteDescription string `json:"routeDescription" validate:"required,max=1000"`
}

type HazardResponse struct {
	HasHazards    bool   `json:"hasHazards"`
	HazardSummary string `json:"hazardSummary,omitempty"`
}

type SafetyScoreRequest struct {
	LocationDescription string `json:"locationDescription" validate:"required,max=500"`
	CrimeData           string `json:"crimeData,omitempty" validate:"max=4000"`
	NewsData            string `json:"newsData,omitempty" validate:"max=4000"`
	UserReports         string `json:"userReports,omitempty" validate:"max=4000"`
}

type SafetyScoreResponse struct {
	SafetyScore int    `json:"safetyScore"`
	Reason      string `json:"reason"`
}
