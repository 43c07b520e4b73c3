package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"herway/models"
	"herway/utils"
)

// ErrorHandler recovers panics and renders errors attached with c.Error.
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle returns the error handling middleware
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.processError(c, c.Errors.Last().Err)
		}
	}
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	stack := string(debug.Stack())
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      stack,
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}).Error("Panic recovered")

	response := models.NewErrorResponse("INTERNAL_ERROR", "Internal server error", "PANIC_RECOVERED", c.GetString("request_id"))
	if eh.environment == "development" {
		response.WithDetails("panic", err).WithDetails("stack", stack)
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, response)
}

func (eh *ErrorHandler) processError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	fields := logrus.Fields{
		"error":      err.Error(),
		"request_id": requestID,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		eh.logger.WithFields(fields).Warn("Client error")
		response := models.NewErrorResponse("VALIDATION_ERROR", "Validation failed", "VALIDATION_FAILED", requestID)
		response.Details = formatValidationErrors(validationErrs)
		c.JSON(http.StatusBadRequest, response)

	case mongo.IsTimeout(err):
		eh.logger.WithFields(fields).Error("Server error")
		c.JSON(http.StatusGatewayTimeout, models.NewErrorResponse("TIMEOUT", "Database operation timed out", "DATABASE_TIMEOUT", requestID))

	case mongo.IsNetworkError(err):
		eh.logger.WithFields(fields).Error("Server error")
		c.JSON(http.StatusServiceUnavailable, models.NewErrorResponse("SERVICE_UNAVAILABLE", "Database connection error", "DATABASE_CONNECTION_ERROR", requestID))

	default:
		if _, ok := utils.GetServiceError(utils.FromSafetyError(err)); ok {
			utils.HandleServiceError(c, err, "Request failed")
			return
		}
		eh.logger.WithFields(fields).Error("Unknown error")
		response := models.NewErrorResponse("INTERNAL_ERROR", "An unexpected error occurred", "UNKNOWN_ERROR", requestID)
		if eh.environment == "development" {
			response.WithDetails("original_error", err.Error())
		}
		c.JSON(http.StatusInternalServerError, response)
	}
}

func formatValidationErrors(validationErrors validator.ValidationErrors) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, err := range validationErrors {
		fields[err.Field()] = map[string]interface{}{
			"tag":   err.Tag(),
			"value": err.Value(),
		}
	}
	return map[string]interface{}{"fields": fields}
}
