package routes

import (
	"github.com/gin-gonic/gin"

	"herway/controllers"
)

// SetupSOSRoutes mounts the live session endpoints.
func SetupSOSRoutes(router *gin.RouterGroup, sosController *controllers.SOSController) {
	sos := router.Group("/sos")
	{
		sos.GET("", sosController.GetSession)
		sos.POST("/escalate", sosController.Escalate)
		sos.POST("/end", sosController.EndSession)
		sos.GET("/history", sosController.GetHistory)
	}

	chat := sos.Group("")
	{
		chat.POST("/messages", sosController.SendMessage)
		chat.POST("/help", sosController.SendHelpMessage)
		chat.POST("/guardian-messages", sosController.PostGuardianMessage)
		chat.POST("/summary", sosController.RequestSummary)
	}

	media := sos.Group("")
	{
		media.POST("/recording", sosController.ToggleRecording)
		media.POST("/photo", sosController.CapturePhoto)
		media.POST("/night-vision", sosController.ToggleNightVision)
		media.POST("/voice-control", sosController.ToggleVoiceControl)
		media.POST("/voice", sosController.VoiceCommand)
	}
}
