package controllers

import (
	"github.com/gin-gonic/gin"

	"herway/models"
	"herway/services"
	"herway/utils"
)

type SOSController struct {
	safetyService   *services.SafetyService
	guardianService *services.GuardianService
}

func NewSOSController(safetyService *services.SafetyService, guardianService *services.GuardianService) *SOSController {
	return &SOSController{
		safetyService:   safetyService,
		guardianService: guardianService,
	}
}

// Escalate opens an SOS session, or returns the open one.
func (sc *SOSController) Escalate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.EscalateRequest
	if !bindJSON(c, &req) {
		return
	}

	snap, err := sc.safetyService.Escalate(c.Request.Context(), user, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to start SOS")
		return
	}
	utils.SuccessResponse(c, "SOS active", snap)
}

func (sc *SOSController) GetSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "SOS session retrieved successfully", sc.safetyService.Session(c.Request.Context(), user))
}

func (sc *SOSController) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	msg, err := sc.safetyService.SendMessage(c.Request.Context(), user, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to send message")
		return
	}
	utils.CreatedResponse(c, "Message sent", msg)
}

// SendHelpMessage posts the canned "I need help" message.
func (sc *SOSController) SendHelpMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	msg, err := sc.safetyService.SendHelpMessage(c.Request.Context(), user)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to send message")
		return
	}
	utils.CreatedResponse(c, "Message sent", msg)
}

// PostGuardianMessage lets a guardian write into a protected user's session.
func (sc *SOSController) PostGuardianMessage(c *gin.Context) {
	guardian, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.GuardianMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	msg, err := sc.guardianService.PostGuardianMessage(c.Request.Context(), guardian, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to send message")
		return
	}
	utils.CreatedResponse(c, "Message sent", msg)
}

// =================== MEDIA ===================

func (sc *SOSController) ToggleRecording(c *gin.Context) {
	userAction(c, sc.safetyService.ToggleRecording, "Recording toggled", "Failed to toggle recording")
}

func (sc *SOSController) CapturePhoto(c *gin.Context) {
	userAction(c, sc.safetyService.CapturePhoto, "Photo captured", "Failed to capture photo")
}

func (sc *SOSController) ToggleNightVision(c *gin.Context) {
	userAction(c, sc.safetyService.ToggleNightVision, "Night vision toggled", "Failed to toggle night vision")
}

func (sc *SOSController) ToggleVoiceControl(c *gin.Context) {
	userAction(c, sc.safetyService.ToggleVoiceControl, "Voice control toggled", "Failed to toggle voice control")
}

func (sc *SOSController) VoiceCommand(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.VoiceCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	resp, err := sc.safetyService.HandleVoiceCommand(c.Request.Context(), user, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to handle voice command")
		return
	}
	utils.SuccessResponse(c, "Voice command handled", resp)
}

// =================== SUMMARY & END ===================

func (sc *SOSController) RequestSummary(c *gin.Context) {
	userAction(c, sc.safetyService.RequestSummary, "Summary generated", "Failed to generate summary")
}

func (sc *SOSController) EndSession(c *gin.Context) {
	userAction(c, sc.safetyService.EndSession, "SOS session ended", "Failed to end session")
}

// GetHistory lists past incidents, newest first.
func (sc *SOSController) GetHistory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var page models.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		utils.BadRequestResponse(c, "Invalid pagination parameters")
		return
	}
	page.Normalize()

	history, total, err := sc.safetyService.History(c.Request.Context(), user, page)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get incident history")
		return
	}
	utils.SuccessResponseWithMeta(c, "Incident history retrieved successfully", history,
		utils.CreatePaginationMeta(page.Page, page.PageSize, total))
}
