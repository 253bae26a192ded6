package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"emporio-pos/internal/utils"

	"github.com/joho/godotenv"
)

// Config is everything the server reads from the environment (or .env).
type Config struct {
	Port              string
	Debug             bool
	DBDriver          string
	DBDSN             string
	JWTSecret         string
	JWTTTL            time.Duration
	AllowRegistration bool
	CORSOrigins       []string
	Location          *time.Location

	TerminalURL     string
	TerminalID      string
	CardAuthTimeout time.Duration

	GeminiAPIKey string
	GeminiModel  string

	LogLevel     string
	OTLPEndpoint string
	ServiceName  string
}

// Load reads the .env file when present and then the process environment.
// A missing .env is not an error; a missing DB_DSN is.
func Load() (*Config, bool, error) {
	envFile := godotenv.Load() == nil
	cfg, err := FromEnv()
	return cfg, envFile, err
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Debug:        os.Getenv("GIN_MODE") == "debug",
		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:        os.Getenv("DB_DSN"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		TerminalURL:  strings.TrimRight(os.Getenv("TERMINAL_URL"), "/"),
		TerminalID:   os.Getenv("TERMINAL_ID"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getEnv("SERVICE_NAME", "emporio-pos"),
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CardAuthTimeout, err = getDuration("CARD_AUTH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.AllowRegistration, err = getBool("ALLOW_REGISTRATION", false); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if cfg.TerminalID == "" {
		cfg.TerminalID = utils.DeviceID()
	}

	tz := getEnv("TIMEZONE", "Local")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", tz, err)
	}

	switch cfg.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("DB_DRIVER %q is not supported (mysql, postgres, sqlite)", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN not set, please configure your database")
	}
	if cfg.JWTSecret == "" {
		if !cfg.Debug {
			return nil, errors.New("JWT_SECRET not set")
		}
		cfg.JWTSecret = "dev-only-secret"
	}

	return cfg, nil
}

// CardReaderConnected reports whether a payment terminal gateway is configured.
func (c *Config) CardReaderConnected() bool {
	return c.TerminalURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
