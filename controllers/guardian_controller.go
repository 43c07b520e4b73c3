package controllers

import (
	"github.com/gin-gonic/gin"

	"herway/models"
	"herway/services"
	"herway/utils"
)

type GuardianController struct {
	guardianService *services.GuardianService
}

func NewGuardianController(guardianService *services.GuardianService) *GuardianController {
	return &GuardianController{
		guardianService: guardianService,
	}
}

// GetGuardians lists the caller's trusted contacts.
func (gc *GuardianController) GetGuardians(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	guardians, err := gc.guardianService.ListGuardians(c.Request.Context(), user.ID)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get guardians")
		return
	}
	utils.SuccessResponse(c, "Guardians retrieved successfully", guardians)
}

func (gc *GuardianController) AddGuardian(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateGuardianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	guardian, err := gc.guardianService.AddGuardian(c.Request.Context(), user.ID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to add guardian")
		return
	}
	utils.CreatedResponse(c, "Guardian added successfully", guardian)
}

func (gc *GuardianController) RemoveGuardian(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	guardianID := c.Param("guardianId")
	if guardianID == "" {
		utils.BadRequestResponse(c, "Guardian ID is required")
		return
	}

	if err := gc.guardianService.RemoveGuardian(c.Request.Context(), user.ID, guardianID); err != nil {
		utils.HandleServiceError(c, err, "Failed to remove guardian")
		return
	}
	utils.SuccessResponse(c, "Guardian removed successfully", nil)
}

// GetProtectedUsers is the guardian dashboard: everyone the caller watches
// over with their live safety status.
func (gc *GuardianController) GetProtectedUsers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	protected, err := gc.guardianService.ProtectedUsers(c.Request.Context(), user.ID)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get protected users")
		return
	}
	utils.SuccessResponse(c, "Protected users retrieved successfully", protected)
}
