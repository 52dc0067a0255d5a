package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string
	BaseURL       string

	// Database configuration
	DatabasePath string

	// Authentication
	JWTSecret        string
	JWTIssuer        string
	SessionTTL       time.Duration
	MagicLinkTTL     time.Duration
	SecureCookies    bool
	MagicLinkPerHour int

	// AI providers
	GroqBaseURL         string
	OpenRouterBaseURL   string
	OpenRouterAPIKey    string
	AIRequestsPerMinute int

	// Mail delivery
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// Tunables file watched at runtime
	TunablesPath string

	// Logging and features
	LogLevel      string
	EnableCORS    bool
	EnableMetrics bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		BaseURL:       getEnv("BASE_URL", "http://localhost:8080"),

		DatabasePath: getEnv("DATABASE_PATH", "millionx.db"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "millionx"),
		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_HOURS", 720)) * time.Hour,
		MagicLinkTTL:     time.Duration(getEnvInt("MAGIC_LINK_TTL_HOURS", 24)) * time.Hour,
		SecureCookies:    getEnvBool("SECURE_COOKIES", false),
		MagicLinkPerHour: getEnvInt("MAGIC_LINK_PER_HOUR", 5),

		GroqBaseURL:         getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenRouterBaseURL:   getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:    getEnv("OPENROUTER_API_KEY", ""),
		AIRequestsPerMinute: getEnvInt("AI_REQUESTS_PER_MINUTE", 30),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@millionx.dev"),

		TunablesPath: getEnv("TUNABLES_PATH", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required in production")
		}
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required in production")
		}
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH cannot be empty")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
