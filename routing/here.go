package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultHereBaseURL = "https://router.hereapi.com/v8"

var (
	ErrMissingAPIKey = errors.New("HERE API key is not configured")
	ErrNoRoute       = errors.New("router returned no route")
)

// TransportModes lists the modes accepted by the router.
var TransportModes = []string{"car", "pedestrian", "bicycle", "scooter", "taxi", "bus"}

type RouteRequest struct {
	Origin        LatLng      `json:"origin"`
	Destination   LatLng      `json:"destination"`
	TransportMode string      `json:"transportMode"`
	Avoid         []AvoidZone `json:"avoid,omitempty"`
}

type Route struct {
	Polyline string   `json:"polyline"`
	Points   []LatLng `json:"points"`
}

type HereConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// HereClient calls the HERE routing API.
type HereClient struct {
	config     HereConfig
	httpClient *http.Client
}

func NewHereClient(config HereConfig) *HereClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultHereBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &HereClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type hereResponse struct {
	Title  string `json:"title"`
	Cause  string `json:"cause"`
	Routes []struct {
		Sections []struct {
			Polyline string `json:"polyline"`
		} `json:"sections"`
	} `json:"routes"`
}

// Route requests a route and decodes the polyline of its first section.
func (c *HereClient) Route(ctx context.Context, req RouteRequest) (*Route, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqURL := c.buildURL(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var data hereResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logrus.WithField("status", resp.StatusCode).Errorf("HERE API error: %s", string(body))
		msg := data.Title
		if msg == "" {
			msg = "failed to fetch route from HERE API"
		}
		return nil, fmt.Errorf("router error (status %d): %s", resp.StatusCode, msg)
	}

	if len(data.Routes) == 0 || len(data.Routes[0].Sections) == 0 {
		return nil, ErrNoRoute
	}

	encoded := data.Routes[0].Sections[0].Polyline
	points, err := DecodePolyline(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding polyline: %w", err)
	}
	return &Route{Polyline: encoded, Points: points}, nil
}

func (c *HereClient) buildURL(req RouteRequest) string {
	mode := req.TransportMode
	if mode == "" {
		mode = "pedestrian"
	}

	q := url.Values{}
	q.Set("transportMode", mode)
	q.Set("origin", formatLatLng(req.Origin))
	q.Set("destination", formatLatLng(req.Destination))
	q.Set("return", "polyline")
	if areas := AvoidAreas(req.Avoid); areas != "" {
		q.Set("avoid[areas]", areas)
	}
	q.Set("apiKey", c.config.APIKey)

	return c.config.BaseURL + "/routes?" + q.Encode()
}

func formatLatLng(p LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
