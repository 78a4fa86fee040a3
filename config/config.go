package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Env  string
	Port string

	MongoURI      string
	MongoDatabase string

	RedisAddr string
	RedisDB   int

	JWTSecret        string
	JWTExpiresIn     time.Duration
	JWTCookieExpires time.Duration

	CORSOrigins      []string
	RateLimitPerHour int
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads a .env file when one exists and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := &Config{
		Env:           getenv("APP_ENV", EnvDevelopment),
		Port:          getenv("PORT", "3001"),
		MongoDatabase: getenv("MONGODB_DATABASE", "natours"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
	}
	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return nil, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.Env)
	}
	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	cfg.MongoURI = os.Getenv("MONGODB_URI")
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI environment variable is not set")
	}
	if pw := os.Getenv("DATABASE_PASSWORD"); pw != "" {
		cfg.MongoURI = strings.Replace(cfg.MongoURI, "<PASSWORD>", pw, 1)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	var err error
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiresIn, err = ParseDuration(getenv("JWT_EXPIRES_IN", "90d")); err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}
	cookieDays, err := getint("JWT_COOKIE_EXPIRES_IN", 90)
	if err != nil {
		return nil, err
	}
	cfg.JWTCookieExpires = time.Duration(cookieDays) * 24 * time.Hour
	if cfg.RateLimitPerHour, err = getint("RATE_LIMIT_PER_HOUR", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerHour < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_HOUR must be at least 1, got %d", cfg.RateLimitPerHour)
	}

	for _, origin := range strings.Split(getenv("CORS_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	return cfg, nil
}

// ParseDuration accepts Go durations plus a whole-day suffix ("90d").
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %v", key, err)
	}
	return n, nil
}
