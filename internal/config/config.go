package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Client
	APIBaseURL           string
	APIKey               string
	RequestTimeout       time.Duration
	SessionFile          string
	DefaultTokenDuration time.Duration
	LogLevel             string
	MetricsAddr          string

	// Development backend
	MockPort         string
	MockJWTSecret    string
	MockAccessTTL    time.Duration
	MockRefreshTTL   time.Duration
	MockUsersFile    string
	MockBcryptCost   int
	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8080"),
		APIKey:               strings.TrimSpace(os.Getenv("API_KEY")),
		RequestTimeout:       getDuration("REQUEST_TIMEOUT", 10*time.Second),
		SessionFile:          getEnv("SESSION_FILE", "./state/session.db"),
		DefaultTokenDuration: getDuration("DEFAULT_TOKEN_DURATION", 15*time.Second),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		MetricsAddr:          strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		MockPort:             getEnv("MOCK_PORT", "8080"),
		MockJWTSecret:        strings.TrimSpace(os.Getenv("MOCK_JWT_SECRET")),
		MockAccessTTL:        getDuration("MOCK_ACCESS_TTL", 15*time.Second),
		MockRefreshTTL:       getDuration("MOCK_REFRESH_TTL", 168*time.Hour),
		MockUsersFile:        strings.TrimSpace(os.Getenv("MOCK_USERS_FILE")),
		MockBcryptCost:       getInt("MOCK_BCRYPT_COST", 12),
		CORSOrigins:          splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:     getInt("AUTH_RATE_LIMIT_RPM", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every client command needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}

	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.SessionFile) == "" {
		return fmt.Errorf("SESSION_FILE cannot be empty")
	}

	if c.DefaultTokenDuration <= 0 {
		return fmt.Errorf("DEFAULT_TOKEN_DURATION must be positive")
	}

	return nil
}

// ValidateMockAPI checks the settings used only by the development backend.
func (c *Config) ValidateMockAPI() error {
	if strings.TrimSpace(c.MockJWTSecret) == "" {
		return fmt.Errorf("MOCK_JWT_SECRET is required")
	}

	if c.MockPort == "" {
		return fmt.Errorf("MOCK_PORT cannot be empty")
	}

	if c.MockAccessTTL <= 0 {
		return fmt.Errorf("MOCK_ACCESS_TTL must be positive")
	}

	if c.MockRefreshTTL < c.MockAccessTTL {
		return fmt.Errorf("MOCK_REFRESH_TTL must not be shorter than MOCK_ACCESS_TTL")
	}

	if c.MockBcryptCost < 4 || c.MockBcryptCost > 31 {
		return fmt.Errorf("MOCK_BCRYPT_COST must be between 4 and 31")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
