package controllers

import (
	"github.com/gin-gonic/gin"

	"herway/models"
	"herway/services"
	"herway/utils"
)

type SafetyController struct {
	safetyService *services.SafetyService
}

func NewSafetyController(safetyService *services.SafetyService) *SafetyController {
	return &SafetyController{
		safetyService: safetyService,
	}
}

// GetStatus returns the whole dashboard: confirmation, check-in, trip,
// distress and SOS state.
func (sc *SafetyController) GetStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "Safety status retrieved successfully", sc.safetyService.Status(c.Request.Context(), user))
}

// =================== EMERGENCY CONFIRMATION ===================

func (sc *SafetyController) ArmEmergency(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ArmEmergencyRequest
	if !bindJSON(c, &req) {
		return
	}

	snap, err := sc.safetyService.ArmEmergency(c.Request.Context(), user, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to arm emergency")
		return
	}
	utils.SuccessResponse(c, "Emergency countdown started", snap)
}

func (sc *SafetyController) CancelEmergency(c *gin.Context) {
	userAction(c, sc.safetyService.CancelEmergency, "Emergency cancelled", "Failed to cancel emergency")
}

// =================== CHECK-IN ===================

func (sc *SafetyController) StartCheckIn(c *gin.Context) {
	userAction(c, sc.safetyService.StartCheckIn, "Check-in started", "Failed to start check-in")
}

func (sc *SafetyController) MarkSafe(c *gin.Context) {
	userAction(c, sc.safetyService.MarkSafe, "Marked safe", "Failed to mark safe")
}

func (sc *SafetyController) StopCheckIn(c *gin.Context) {
	userAction(c, sc.safetyService.StopCheckIn, "Check-in stopped", "Failed to stop check-in")
}

func (sc *SafetyController) ResetCheckIn(c *gin.Context) {
	userAction(c, sc.safetyService.ResetCheckIn, "Check-in reset", "Failed to reset check-in")
}

// =================== FOLLOW ME HOME ===================

func (sc *SafetyController) StartTrip(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.StartTripRequest
	if !bindJSON(c, &req) {
		return
	}

	snap, err := sc.safetyService.StartTrip(c.Request.Context(), user, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to start trip")
		return
	}
	utils.SuccessResponse(c, "Trip started", snap)
}

func (sc *SafetyController) ArrivedSafely(c *gin.Context) {
	userAction(c, sc.safetyService.ArrivedSafely, "Arrived safely", "Failed to end trip")
}

func (sc *SafetyController) ResetTrip(c *gin.Context) {
	userAction(c, sc.safetyService.ResetTrip, "Trip reset", "Failed to reset trip")
}

// RecordMovement feeds a position fix into the active trip.
func (sc *SafetyController) RecordMovement(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	snap, err := sc.safetyService.RecordMovement(c.Request.Context(), user, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to record movement")
		return
	}
	utils.SuccessResponse(c, "Movement recorded", snap)
}

// ConfirmTripPrompt answers the "are you okay?" prompt shown mid-trip.
func (sc *SafetyController) ConfirmTripPrompt(c *gin.Context) {
	userAction(c, sc.safetyService.ConfirmTripPrompt, "Trip prompt confirmed", "Failed to confirm prompt")
}

// =================== DISTRESS ===================

func (sc *SafetyController) ListenForDistress(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "Listening for distress", sc.safetyService.ListenForDistress(c.Request.Context(), user))
}

func (sc *SafetyController) ResetDistress(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "Distress detector reset", sc.safetyService.ResetDistress(c.Request.Context(), user))
}

func (sc *SafetyController) AnalyzeDistress(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.AnalyzeDistressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	verdict, err := sc.safetyService.AnalyzeDistress(c.Request.Context(), user, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to analyze sample")
		return
	}
	utils.SuccessResponse(c, "Sample analyzed", verdict)
}
