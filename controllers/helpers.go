package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"herway/services"
	"herway/utils"
)

// currentUser reads the identity set by the auth middleware. It writes a 401
// and returns false when the request is anonymous.
func currentUser(c *gin.Context) (services.User, bool) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return services.User{}, false
	}
	return services.User{ID: userID, Name: c.GetString("userName")}, true
}

// bindJSON decodes an optional body. An empty body leaves req untouched.
func bindJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return false
	}
	return true
}

// userAction runs a body-less operation for the caller and writes its result.
func userAction[T any](c *gin.Context, op func(context.Context, services.User) (T, error), message, failure string) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := op(c.Request.Context(), user)
	if err != nil {
		utils.HandleServiceError(c, err, failure)
		return
	}
	utils.SuccessResponse(c, message, result)
}
