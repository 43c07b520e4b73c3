package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"herway/safety"
)

type Config struct {
	Environment string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTTokenTTL time.Duration
	Version     string

	// Firebase Config
	FirebaseCredentials string

	// Twilio Config
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// SMTP Settings
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Routing and AI collaborators
	HereAPIKey  string
	HereBaseURL string
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration

	// Safety flow timings
	ConfirmationSeconds int
	ConfirmationMode    string
	CheckInSeconds      int
	CheckInMode         string
	CheckInEscalate     bool
	TripSeconds         int
	TripReminderSeconds int
	TripPromptSeconds   int
	SummaryTimeout      time.Duration
	EscalateOnDistress  bool

	// App Settings
	DashboardIdleTTL     time.Duration
	StatusTTL            time.Duration
	RouteCacheTTL        time.Duration
	CheckInRetentionDays int
	RateLimitRequest     int
	RateLimitWindow      int // minutes
	NotificationWorkers  int
	AllowedOrigins       []string
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/herway"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),
		JWTTokenTTL: getEnvAsDuration("JWT_TOKEN_TTL", 24*time.Hour),
		Version:     getEnv("APP_VERSION", "1.0.0"),

		// Firebase
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		// Twilio
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		// Email settings
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "alerts@herway.app"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Her-Way"),

		HereAPIKey:  getEnv("HERE_API_KEY", ""),
		HereBaseURL: getEnv("HERE_BASE_URL", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMTimeout:  getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),

		ConfirmationSeconds: getEnvAsInt("CONFIRMATION_SECONDS", 10),
		ConfirmationMode:    getEnv("CONFIRMATION_MODE", string(safety.ExpiryEscalate)),
		CheckInSeconds:      getEnvAsInt("CHECKIN_SECONDS", 30),
		CheckInMode:         getEnv("CHECKIN_MODE", string(safety.CheckInSingle)),
		CheckInEscalate:     getEnvAsBool("CHECKIN_ESCALATE", true),
		TripSeconds:         getEnvAsInt("TRIP_SECONDS", 120),
		TripReminderSeconds: getEnvAsInt("TRIP_REMINDER_SECONDS", 30),
		TripPromptSeconds:   getEnvAsInt("TRIP_PROMPT_SECONDS", 0),
		SummaryTimeout:      getEnvAsDuration("SUMMARY_TIMEOUT", 20*time.Second),
		EscalateOnDistress:  getEnvAsBool("DISTRESS_ESCALATE", true),

		DashboardIdleTTL:     getEnvAsDuration("DASHBOARD_IDLE_TTL", 2*time.Hour),
		StatusTTL:            getEnvAsDuration("STATUS_TTL", 24*time.Hour),
		RouteCacheTTL:        getEnvAsDuration("ROUTE_CACHE_TTL", 15*time.Minute),
		CheckInRetentionDays: getEnvAsInt("CHECKIN_RETENTION_DAYS", 90),
		RateLimitRequest:     getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:      getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 1),
		NotificationWorkers:  getEnvAsInt("NOTIFICATION_WORKERS", 3),
		AllowedOrigins:       getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
	}
}

// SafetyConfig builds the per-user dashboard configuration. Invalid modes
// fall back to the defaults with a warning.
func (c *Config) SafetyConfig() safety.DashboardConfig {
	cfg := safety.DefaultDashboardConfig()

	if c.ConfirmationSeconds > 0 {
		cfg.Confirmation.TotalSeconds = c.ConfirmationSeconds
	}
	switch mode := safety.ExpiryMode(strings.ToLower(c.ConfirmationMode)); mode {
	case safety.ExpiryEscalate, safety.ExpiryClose:
		cfg.Confirmation.Mode = mode
	default:
		logrus.Warnf("Unknown CONFIRMATION_MODE %q, using %s", c.ConfirmationMode, cfg.Confirmation.Mode)
	}

	if c.CheckInSeconds > 0 {
		cfg.CheckIn.TotalSeconds = c.CheckInSeconds
	}
	switch mode := safety.CheckInMode(strings.ToLower(c.CheckInMode)); mode {
	case safety.CheckInRepeating, safety.CheckInSingle:
		cfg.CheckIn.Mode = mode
	default:
		logrus.Warnf("Unknown CHECKIN_MODE %q, using %s", c.CheckInMode, cfg.CheckIn.Mode)
	}
	cfg.CheckIn.EscalateOnMiss = c.CheckInEscalate

	if c.TripSeconds > 0 {
		cfg.Trip.TotalSeconds = c.TripSeconds
	}
	if c.TripReminderSeconds > 0 {
		cfg.Trip.ReminderSeconds = c.TripReminderSeconds
	}
	cfg.Trip.PromptSeconds = c.TripPromptSeconds

	if c.SummaryTimeout > 0 {
		cfg.SOS.SummaryTimeout = c.SummaryTimeout
	}
	cfg.EscalateOnDistress = c.EscalateOnDistress

	return cfg
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Warnf("Invalid REDIS_URL, falling back to localhost: %v", err)
		opt = &redis.Options{
			Addr: "localhost:6379",
			DB:   0,
		}
	}

	return redis.NewClient(opt)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
