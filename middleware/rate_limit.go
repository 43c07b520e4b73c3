package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"herway/metrics"
	"herway/utils"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis        *redis.Client
	Requests     int           // Number of requests allowed
	Window       time.Duration // Time window
	KeyPrefix    string        // Redis key prefix, also the metric scope
	SkipPaths    []string      // Path prefixes never limited
	ErrorMessage string
}

// RateLimitStrategy defines different rate limiting strategies
type RateLimitStrategy string

const (
	StrategyIP       RateLimitStrategy = "ip"
	StrategyUser     RateLimitStrategy = "user"
	StrategyUserOrIP RateLimitStrategy = "user_or_ip"
)

// Emergency paths are never throttled.
var safetyPaths = []string{
	"/health",
	"/metrics",
	"/api/v1/safety",
	"/api/v1/sos",
}

// RateLimiter is a sliding window log kept in a Redis sorted set per key.
type RateLimiter struct {
	config   RateLimitConfig
	strategy RateLimitStrategy
}

func NewRateLimiter(config RateLimitConfig, strategy RateLimitStrategy) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "herway:rate_limit"
	}
	if config.ErrorMessage == "" {
		config.ErrorMessage = "Rate limit exceeded"
	}

	return &RateLimiter{
		config:   config,
		strategy: strategy,
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.config.Redis == nil || rl.shouldSkipPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := rl.getKey(c)
		if key == "" {
			c.Next()
			return
		}

		allowed, resetTime, remaining, err := rl.checkRateLimit(c.Request.Context(), key)
		if err != nil {
			logrus.Errorf("Rate limit check failed: %v", err)
			// Fail open when Redis is unavailable
			c.Next()
			return
		}

		rl.setRateLimitHeaders(c, remaining, resetTime)

		if !allowed {
			rl.handleRateLimitExceeded(c, resetTime)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string) (allowed bool, resetTime time.Time, remaining int, err error) {
	now := time.Now()
	window := rl.config.Window
	member := uuid.New().String()

	pipe := rl.config.Redis.Pipeline()

	// Remove expired entries
	expiredBefore := now.Add(-window).UnixNano()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", expiredBefore))

	// Count current requests
	card := pipe.ZCard(ctx, key)

	// Add current request
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})

	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, time.Time{}, 0, err
	}

	// Count before adding the new request
	currentCount := card.Val()

	remaining = rl.config.Requests - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}

	resetTime = now.Add(window)
	allowed = currentCount < int64(rl.config.Requests)

	// Rejected requests do not count against the window
	if !allowed {
		rl.config.Redis.ZRem(ctx, key, member)
	}

	return allowed, resetTime, remaining, nil
}

func (rl *RateLimiter) getKey(c *gin.Context) string {
	prefix := rl.config.KeyPrefix

	switch rl.strategy {
	case StrategyUser:
		userID := c.GetString("userID")
		if userID == "" {
			return ""
		}
		return fmt.Sprintf("%s:user:%s", prefix, userID)

	case StrategyUserOrIP:
		if userID := c.GetString("userID"); userID != "" {
			return fmt.Sprintf("%s:user:%s", prefix, userID)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())

	default:
		return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())
	}
}

func (rl *RateLimiter) setRateLimitHeaders(c *gin.Context, remaining int, resetTime time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func (rl *RateLimiter) handleRateLimitExceeded(c *gin.Context, resetTime time.Time) {
	retryAfter := int(time.Until(resetTime).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	metrics.RateLimitedTotal.WithLabelValues(rl.config.KeyPrefix).Inc()

	logrus.WithFields(logrus.Fields{
		"client_ip":   c.ClientIP(),
		"user_id":     c.GetString("userID"),
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"retry_after": retryAfter,
	}).Warn("Rate limit exceeded")

	utils.RateLimitResponse(c, rl.config.ErrorMessage, retryAfter, resetTime)
	c.Abort()
}

func (rl *RateLimiter) shouldSkipPath(path string) bool {
	for _, skipPath := range rl.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// APIRateLimit limits the general API per user, falling back to the client IP.
func APIRateLimit(client *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     requests,
		Window:       window,
		KeyPrefix:    "herway:rate_limit:api",
		SkipPaths:    safetyPaths,
		ErrorMessage: "Too many requests. Please try again later.",
	}, StrategyUserOrIP).Middleware()
}

// RouteRateLimit guards the endpoints that call the paid routing and AI
// providers.
func RouteRateLimit(client *redis.Client) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     30,
		Window:       time.Minute,
		KeyPrefix:    "herway:rate_limit:routes",
		ErrorMessage: "Route planning rate limit exceeded. Please slow down.",
	}, StrategyUser).Middleware()
}

// WebSocketRateLimit caps connection attempts per IP.
func WebSocketRateLimit(client *redis.Client) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Redis:        client,
		Requests:     10,
		Window:       time.Minute,
		KeyPrefix:    "herway:rate_limit:ws",
		ErrorMessage: "WebSocket connection rate limit exceeded.",
	}, StrategyIP).Middleware()
}
