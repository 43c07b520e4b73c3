package utils

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"herway/models"
)

// Success responses
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func SuccessResponseWithMeta(c *gin.Context, message string, data interface{}, meta *models.MetaData) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
		Timestamp: time.Now(),
	})
}

func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// errorJSON writes the failure envelope shared by every error helper.
func errorJSON(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

func ValidationErrorResponse(c *gin.Context, validationErrors []ValidationError) {
	errorJSON(c, http.StatusBadRequest, models.ErrCodeValidation, "Validation failed", validationErrors)
}

func BadRequestResponse(c *gin.Context, message string) {
	errorJSON(c, http.StatusBadRequest, models.ErrCodeValidation, message, nil)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized access"
	}
	errorJSON(c, http.StatusUnauthorized, models.ErrCodeAuthentication, message, nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Access forbidden"
	}
	errorJSON(c, http.StatusForbidden, models.ErrCodeAuthorization, message, nil)
}

func NotFoundResponse(c *gin.Context, resource string) {
	errorJSON(c, http.StatusNotFound, models.ErrCodeNotFound, resource+" not found", nil)
}

// RateLimitResponse tells the client when its window reopens.
func RateLimitResponse(c *gin.Context, message string, retryAfter int, resetAt time.Time) {
	if message == "" {
		message = "Rate limit exceeded"
	}
	errorJSON(c, http.StatusTooManyRequests, models.ErrCodeRateLimit, message, gin.H{
		"retry_after": retryAfter,
		"reset_time":  resetAt.Unix(),
	})
}

func InternalServerErrorResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	errorJSON(c, http.StatusInternalServerError, models.ErrCodeInternal, message, nil)
}

// HandleServiceError writes the response for an error returned by a service.
// ServiceErrors keep their own status and code; safety sentinels are mapped
// first. Anything else is logged and reported as a 500.
func HandleServiceError(c *gin.Context, err error, fallback string) {
	err = FromSafetyError(err)

	if serviceErr, ok := GetServiceError(err); ok {
		status := serviceErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			logrus.WithError(err).WithField("path", c.FullPath()).Error(fallback)
		}
		if len(serviceErr.Fields) > 0 {
			ValidationErrorResponse(c, serviceErr.Fields)
			return
		}
		message := serviceErr.Message
		if serviceErr.Details != "" && status < http.StatusInternalServerError {
			message = serviceErr.Message + ": " + serviceErr.Details
		}
		errorJSON(c, status, serviceErr.Code, message, nil)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		errorJSON(c, http.StatusGatewayTimeout, models.ErrCodeTimeout, fallback, nil)
		return
	}

	logrus.WithError(err).WithField("path", c.FullPath()).Error(fallback)
	InternalServerErrorResponse(c, fallback)
}

// WebSocket responses
func WSSuccessResponse(requestID string, data interface{}) models.WSResponse {
	return models.WSResponse{
		Type:      models.WSTypeSuccess,
		Data:      data,
		Success:   true,
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

func WSErrorResponse(requestID string, errorMsg string) models.WSResponse {
	return models.WSResponse{
		Type:      models.WSTypeError,
		Success:   false,
		Error:     errorMsg,
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

func CreatePaginationMeta(page, pageSize int, total int64) *models.MetaData {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &models.MetaData{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// HealthCheckResponse creates a health check response
func HealthCheckResponse(services map[string]string, version, uptime string) models.HealthResponse {
	status := "healthy"
	for _, serviceStatus := range services {
		if serviceStatus != "healthy" && serviceStatus != "disabled" {
			status = "degraded"
			break
		}
	}

	return models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   version,
		Uptime:    uptime,
	}
}
