package routes

import (
	"github.com/gin-gonic/gin"

	"herway/controllers"
)

// SetupSafetyRoutes mounts the arming flows. None of them are rate limited.
func SetupSafetyRoutes(router *gin.RouterGroup, safetyController *controllers.SafetyController) {
	safety := router.Group("/safety")
	safety.GET("/status", safetyController.GetStatus)

	emergency := safety.Group("/emergency")
	{
		emergency.POST("/arm", safetyController.ArmEmergency)
		emergency.POST("/cancel", safetyController.CancelEmergency)
	}

	checkIn := safety.Group("/checkin")
	{
		checkIn.POST("/start", safetyController.StartCheckIn)
		checkIn.POST("/mark-safe", safetyController.MarkSafe)
		checkIn.POST("/stop", safetyController.StopCheckIn)
		checkIn.POST("/reset", safetyController.ResetCheckIn)
	}

	trip := safety.Group("/trip")
	{
		trip.POST("/start", safetyController.StartTrip)
		trip.POST("/arrived", safetyController.ArrivedSafely)
		trip.POST("/reset", safetyController.ResetTrip)
		trip.POST("/movement", safetyController.RecordMovement)
		trip.POST("/prompt", safetyController.ConfirmTripPrompt)
	}

	distress := safety.Group("/distress")
	{
		distress.POST("/listen", safetyController.ListenForDistress)
		distress.POST("/analyze", safetyController.AnalyzeDistress)
		distress.POST("/reset", safetyController.ResetDistress)
	}
}
