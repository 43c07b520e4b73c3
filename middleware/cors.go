package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowAllOrigins  bool
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows the given origins; "*" opens the API to any
// origin without credentials.
func DefaultCORSConfig(origins []string) CORSConfig {
	config := CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Authorization",
			"Accept",
			"Cache-Control",
			"X-Requested-With",
			"X-Request-ID",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			config.AllowAllOrigins = true
			config.AllowCredentials = false
		}
	}
	return config
}

// CORS returns a CORS middleware with the given configuration
func CORS(config CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && !isOriginAllowed(config, origin) {
			logrus.Debugf("CORS: Origin not allowed: %s", origin)
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		if origin != "" {
			if config.AllowAllOrigins && !config.AllowCredentials {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			if config.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
			if requested := c.Request.Header.Get("Access-Control-Request-Headers"); requested != "" {
				if allowed := filterAllowedHeaders(config, requested); len(allowed) > 0 {
					c.Header("Access-Control-Allow-Headers", strings.Join(allowed, ", "))
				}
			} else {
				c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
			}
			if config.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if len(config.ExposeHeaders) > 0 {
			c.Header("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
		}

		c.Next()
	}
}

// isOriginAllowed checks if the origin is allowed
func isOriginAllowed(config CORSConfig, origin string) bool {
	if config.AllowAllOrigins {
		return true
	}

	for _, allowedOrigin := range config.AllowOrigins {
		if allowedOrigin == origin {
			return true
		}
		// Support wildcard subdomains (e.g., *.example.com)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := allowedOrigin[2:]
			if strings.HasSuffix(origin, "."+domain) {
				return true
			}
		}
	}

	return false
}

// filterAllowedHeaders filters requested headers against allowed headers
func filterAllowedHeaders(config CORSConfig, requestHeaders string) []string {
	var allowedHeaders []string
	for _, header := range strings.Split(requestHeaders, ",") {
		header = strings.TrimSpace(header)
		for _, allowed := range config.AllowHeaders {
			if strings.EqualFold(allowed, header) {
				allowedHeaders = append(allowedHeaders, header)
				break
			}
		}
	}
	return allowedHeaders
}

// CORSMiddleware builds the CORS layer from the configured origin list.
func CORSMiddleware(environment string, origins []string) gin.HandlerFunc {
	config := DefaultCORSConfig(origins)
	if config.AllowAllOrigins && environment == "production" {
		logrus.Warn("CORS allows every origin in production; set ALLOWED_ORIGINS")
	}
	return CORS(config)
}
