package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds process-level settings read from the environment.
// Business rules live in Rules, loaded from static documents.
type Config struct {
	AppEnv   string
	LogLevel string
	Version  string

	DiscordToken   string
	DiscordGuildID string

	StoreDriver string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GeminiAPIKey string
	GeminiModel  string

	HTTPAddr      string
	APIEnabled    bool
	JWTSecret     string
	AllowedOrigin string
	// Requests per window per client IP on /api/v1.
	APIRateLimit  int
	APIRateWindow time.Duration

	RulesPath string
	DataDir   string

	// NodeID seeds ledger entry ids; replicas sharing a database need distinct values.
	NodeID int64
}

// IsProduction reports whether logs should be JSON.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads .env (if present) and the process environment. Missing required
// settings are fatal.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from getenv and reports every missing required key at once.
func FromEnv(getenv func(string) string) (*Config, error) {
	var missing []string
	required := func(key string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	orDefault := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		AppEnv:         orDefault("APP_ENV", "development"),
		LogLevel:       orDefault("LOG_LEVEL", "info"),
		Version:        orDefault("APP_VERSION", "dev"),
		DiscordToken:   required("DISCORD_TOKEN"),
		DiscordGuildID: required("DISCORD_GUILD_ID"),
		StoreDriver:    strings.ToLower(orDefault("STORE_DRIVER", StoreDriverPostgres)),
		RedisAddr:      getenv("REDIS_ADDR"),
		RedisPassword:  getenv("REDIS_PASSWORD"),
		GeminiAPIKey:   getenv("GEMINI_API_KEY"),
		GeminiModel:    orDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		HTTPAddr:       orDefault("HTTP_ADDR", ":8080"),
		APIEnabled:     orDefault("API_ENABLED", "true") == "true",
		AllowedOrigin:  getenv("ALLOWED_ORIGIN"),
		APIRateLimit:   60,
		APIRateWindow:  time.Minute,
		RulesPath:      orDefault("RULES_PATH", "config/rules.yaml"),
		DataDir:        orDefault("DATA_DIR", "config"),
		NodeID:         1,
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DatabaseURL = required("DATABASE_URL")
	case StoreDriverMemory:
		cfg.DatabaseURL = getenv("DATABASE_URL")
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.StoreDriver)
	}

	if cfg.APIEnabled {
		cfg.JWTSecret = required("JWT_SECRET")
	}

	if v := getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("REDIS_DB must be a non-negative integer, got %q", v)
		}
		cfg.RedisDB = n
	}

	if v := getenv("NODE_ID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 || n > 1023 {
			return nil, fmt.Errorf("NODE_ID must be between 0 and 1023, got %q", v)
		}
		cfg.NodeID = n
	}
	if v := getenv("API_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("API_RATE_LIMIT must be a positive integer, got %q", v)
		}
		cfg.APIRateLimit = n
	}
	if v := getenv("API_RATE_WINDOW_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("API_RATE_WINDOW_SECONDS must be a positive integer, got %q", v)
		}
		cfg.APIRateWindow = time.Duration(n) * time.Second
	}

	if len(missing) > 0 {
		return nil, errors.New("missing required settings: " + strings.Join(missing, ", "))
	}
	return cfg, nil
}
