package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"herway/models"
	"herway/utils"
)

// HealthCheck pings one backing service. A nil check reports "disabled".
type HealthCheck func(ctx context.Context) error

// RuntimeStats reports in-process counters shown by the detailed health check.
type RuntimeStats interface {
	Stats() models.WSHubStats
}

type HealthController struct {
	version   string
	checks    map[string]HealthCheck
	hub       RuntimeStats
	dashboard func() int
	startedAt time.Time
}

func NewHealthController(version string, checks map[string]HealthCheck, hub RuntimeStats, dashboards func() int) *HealthController {
	return &HealthController{
		version:   version,
		checks:    checks,
		hub:       hub,
		dashboard: dashboards,
		startedAt: time.Now(),
	}
}

// HealthCheck reports 200 while every backing service answers and 503 otherwise.
func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	statuses := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if check == nil {
			statuses[name] = "disabled"
			continue
		}
		if err := check(ctx); err != nil {
			logrus.Warnf("Health check %s failed: %v", name, err)
			statuses[name] = "unhealthy"
			continue
		}
		statuses[name] = "healthy"
	}

	response := utils.HealthCheckResponse(statuses, hc.version, time.Since(hc.startedAt).Round(time.Second).String())
	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

// DetailedHealthCheck adds socket and dashboard counters.
func (hc *HealthController) DetailedHealthCheck(c *gin.Context) {
	data := gin.H{
		"version": hc.version,
		"uptime":  time.Since(hc.startedAt).Round(time.Second).String(),
	}
	if hc.hub != nil {
		data["websocket"] = hc.hub.Stats()
	}
	if hc.dashboard != nil {
		data["activeDashboards"] = hc.dashboard()
	}
	utils.SuccessResponse(c, "Runtime statistics", data)
}
