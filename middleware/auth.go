package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"herway/models"
	"herway/utils"
)

type AuthMiddleware struct {
	jwtService *utils.JWTService
}

func NewAuthMiddleware(jwtService *utils.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// RequireAuth validates the bearer token and sets the caller on the context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			abortUnauthorized(c, "Authentication token required", "AUTH_TOKEN_REQUIRED")
			return
		}

		claims, err := am.jwtService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "Authentication token expired", "AUTH_TOKEN_EXPIRED")
				return
			}
			logrus.Warnf("Invalid token: %v", err)
			abortUnauthorized(c, "Invalid authentication token", "AUTH_TOKEN_INVALID")
			return
		}

		role := claims.Role
		if role == "" {
			role = utils.RoleUser
		}

		c.Set("userID", claims.UserID)
		c.Set("userName", claims.Name)
		c.Set("userRole", role)

		c.Next()
	}
}

// RequireRole validates user has specific role
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("userRole")
		if userRole == "" {
			abortUnauthorized(c, "User role not found in context", "AUTH_ROLE_MISSING")
			return
		}

		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}

		utils.ForbiddenResponse(c, "Insufficient permissions")
		c.Abort()
	}
}

// extractToken reads the Authorization header, then the token query
// parameter that browser websocket clients have to use.
func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

func abortUnauthorized(c *gin.Context, message, code string) {
	c.JSON(http.StatusUnauthorized, models.NewErrorResponse("UNAUTHORIZED", message, code, c.GetString("request_id")))
	c.Abort()
}

// GetCurrentUserID returns the current authenticated user ID from context
func GetCurrentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("userID")
	return userID, userID != ""
}
