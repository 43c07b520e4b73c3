package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var nonDigits = regexp.MustCompile(`\D`)

// GetUserID retrieves the authenticated user ID stored by the auth middleware.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		if idStr, ok := userID.(string); ok {
			return idStr
		}
	}
	return ""
}

func GenerateUUID() string {
	return uuid.New().String()
}

// TruncateString shortens s to at most maxLength runes, marking the cut with "...".
func TruncateString(s string, maxLength int) string {
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string([]rune(s)[:maxLength])
	}
	return string([]rune(s)[:maxLength-3]) + "..."
}

func FormatDuration(duration time.Duration) string {
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Security Utilities
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	username := parts[0]
	if len(username) <= 2 {
		return email
	}

	masked := username[:1] + strings.Repeat("*", len(username)-2) + username[len(username)-1:]
	return masked + "@" + parts[1]
}

func MaskPhoneNumber(phone string) string {
	cleaned := nonDigits.ReplaceAllString(phone, "")
	if len(cleaned) < 4 {
		return phone
	}
	return "+" + strings.Repeat("*", len(cleaned)-4) + cleaned[len(cleaned)-4:]
}

func BoolPtr(b bool) *bool {
	return &b
}
