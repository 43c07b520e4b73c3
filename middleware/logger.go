package middleware

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Logger            *logrus.Logger
	EnableRequestBody bool
	MaxBodySize       int64
	SkipPaths         []string
	SlowThreshold     time.Duration
}

// LoggerMiddleware assigns a request id and logs one line per request.
func LoggerMiddleware(config LoggerConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = 4096
	}
	if config.SlowThreshold == 0 {
		config.SlowThreshold = 5 * time.Second
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		if shouldSkipPath(c.Request.URL.Path, config.SkipPaths) {
			c.Next()
			return
		}

		startTime := time.Now()

		var requestBody []byte
		if config.EnableRequestBody && c.Request.Body != nil {
			requestBody = captureRequestBody(c, config.MaxBodySize)
		}

		c.Next()

		duration := time.Since(startTime)
		fields := logrus.Fields{
			"request_id":    requestID,
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"route":         c.FullPath(),
			"status":        c.Writer.Status(),
			"latency_ms":    float64(duration.Nanoseconds()) / 1000000.0,
			"ip":            c.ClientIP(),
			"user_agent":    c.GetHeader("User-Agent"),
			"response_size": c.Writer.Size(),
		}
		if userID := c.GetString("userID"); userID != "" {
			fields["user_id"] = userID
		}
		if role := c.GetString("userRole"); role != "" {
			fields["role"] = role
		}
		if len(requestBody) > 0 && isTextContent(c.GetHeader("Content-Type")) {
			fields["request_body"] = string(requestBody)
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.Errors()
		}

		logRequest(config.Logger, c.Writer.Status(), duration, config.SlowThreshold, fields)
	}
}

// DefaultLoggerMiddleware skips health checks and metrics scrapes.
func DefaultLoggerMiddleware() gin.HandlerFunc {
	return LoggerMiddleware(LoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
	})
}

// DevelopmentLoggerMiddleware also logs request bodies.
func DevelopmentLoggerMiddleware() gin.HandlerFunc {
	return LoggerMiddleware(LoggerConfig{
		EnableRequestBody: true,
		MaxBodySize:       8192,
		SkipPaths:         []string{"/health", "/metrics"},
	})
}

func captureRequestBody(c *gin.Context, maxSize int64) []byte {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSize))
	if err != nil {
		return nil
	}

	// Restore body for further processing
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
	return body
}

func logRequest(logger *logrus.Logger, statusCode int, duration, slow time.Duration, fields logrus.Fields) {
	message := fmt.Sprintf("%s %s %d %s", fields["method"], fields["path"], statusCode, duration)
	entry := logger.WithFields(fields)

	switch {
	case statusCode >= 500:
		entry.Error(message)
	case statusCode >= 400:
		entry.Warn(message)
	case duration > slow:
		entry.Warn(message + " (slow request)")
	default:
		entry.Info(message)
	}
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

func isTextContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "application/json") || strings.HasPrefix(contentType, "text/")
}
