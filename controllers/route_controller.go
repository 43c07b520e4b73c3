package controllers

import (
	"github.com/gin-gonic/gin"

	"herway/models"
	"herway/services"
	"herway/utils"
)

type RouteController struct {
	routeService *services.RouteService
}

func NewRouteController(routeService *services.RouteService) *RouteController {
	return &RouteController{
		routeService: routeService,
	}
}

func (rc *RouteController) PlanRoute(c *gin.Context) {
	var req models.PlanRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	route, err := rc.routeService.PlanRoute(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to plan route")
		return
	}
	utils.SuccessResponse(c, "Route planned successfully", route)
}

func (rc *RouteController) DetectHazards(c *gin.Context) {
	var req models.HazardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	hazards, err := rc.routeService.DetectHazards(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to detect hazards")
		return
	}
	utils.SuccessResponse(c, "Hazards detected", hazards)
}

func (rc *RouteController) SafetyScore(c *gin.Context) {
	var req models.SafetyScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	score, err := rc.routeService.SafetyScore(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to score location")
		return
	}
	utils.SuccessResponse(c, "Safety score calculated", score)
}
