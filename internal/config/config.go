package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	PostgresURI          string
	RedisURI             string
	JWTSecret            string
	Port                 string
	GatewayNode          string   // Instance label used in logs when running multiple gateways
	AllowedOrigins       []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	Environment          string   // ENV: production, development, etc.
	StatusFanoutLimit    int      // Max participant count for eager per-recipient status rows
	PresenceTTLSeconds   int      // TTL on presence sets; refreshed by client pings
	MessagePageSizeLimit int      // Hard cap on history page size
}

const (
	defaultStatusFanoutLimit    = 500
	defaultPresenceTTLSeconds   = 120
	defaultMessagePageSizeLimit = 100
)

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		PostgresURI:          getEnv("POSTGRES_URI", "postgres://localhost:5432/converse?sslmode=disable"),
		RedisURI:             getEnv("REDIS_URI", "redis://localhost:6379/0"),
		JWTSecret:            getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Port:                 getEnv("PORT", "8080"),
		GatewayNode:          getEnv("GATEWAY_NODE", "gateway-1"),
		AllowedOrigins:       allowedOrigins,
		Environment:          env,
		StatusFanoutLimit:    getEnvInt("CHAT_STATUS_FANOUT_LIMIT", defaultStatusFanoutLimit),
		PresenceTTLSeconds:   getEnvInt("PRESENCE_TTL_SECONDS", defaultPresenceTTLSeconds),
		MessagePageSizeLimit: getEnvInt("CHAT_PAGE_SIZE_LIMIT", defaultMessagePageSizeLimit),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
