package routes

import (
	"github.com/gin-gonic/gin"

	"herway/controllers"
)

func SetupGuardianRoutes(router *gin.RouterGroup, guardianController *controllers.GuardianController) {
	guardians := router.Group("/guardians")
	{
		guardians.GET("", guardianController.GetGuardians)
		guardians.POST("", guardianController.AddGuardian)
		guardians.DELETE("/:guardianId", guardianController.RemoveGuardian)
		guardians.GET("/protected", guardianController.GetProtectedUsers)
	}
}
