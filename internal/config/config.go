// Package config assembles runtime configuration from the environment.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chefshef/courtsched/internal/window"
)

// Backend names for the durable store.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	ListenAddr string
	// BaseURL is the public URL of this deployment; the external scheduler
	// calls back through it.
	BaseURL string

	StoreBackend string
	RedisURL     string
	DatabaseURL  string

	// Venue domain constants.
	Timezone       string
	OpenDelayDays  int
	PreciseHorizon time.Duration
	Tolerance      time.Duration

	BookbotURL    string
	BookbotToken  string
	CronjobAPIKey string
	NtfyTopic     string
	WebhookSecret string

	// Operator auth for the dashboard API. Auth is disabled when the hash is
	// empty (single-user local deployments).
	OperatorPasswordHash string
	CookieHashKey        []byte
	CookieBlockKey       []byte

	LogJSON bool
}

func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:           getenv("LISTEN_ADDR", ":8080"),
		BaseURL:              getenv("BASE_URL", "http://localhost:8080"),
		StoreBackend:         getenv("STORE_BACKEND", BackendMemory),
		RedisURL:             os.Getenv("REDIS_URL"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		Timezone:             getenv("VENUE_TIMEZONE", window.DefaultTimezone),
		BookbotURL:           os.Getenv("BOOKBOT_URL"),
		BookbotToken:         os.Getenv("BOOKBOT_TOKEN"),
		CronjobAPIKey:        os.Getenv("CRONJOB_API_KEY"),
		NtfyTopic:            getenv("NTFY_TOPIC", ""),
		WebhookSecret:        os.Getenv("WEBHOOK_SECRET"),
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
		LogJSON:              getenv("LOG_FORMAT", "text") == "json",
	}

	var err error
	if cfg.OpenDelayDays, err = getint("OPEN_DELAY_DAYS", 7); err != nil {
		return Config{}, err
	}
	horizonMin, err := getint("PRECISE_HORIZON_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.PreciseHorizon = time.Duration(horizonMin) * time.Minute
	tolMin, err := getint("TOLERANCE_MINUTES", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.Tolerance = time.Duration(tolMin) * time.Minute

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("STORE_BACKEND=redis requires REDIS_URL")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("VENUE_TIMEZONE: %w", err)
	}

	if cfg.OperatorPasswordHash != "" {
		hashKey := os.Getenv("COOKIE_HASH_KEY")
		blockKey := os.Getenv("COOKIE_BLOCK_KEY")
		if hashKey == "" || blockKey == "" {
			return Config{}, fmt.Errorf("operator auth requires COOKIE_HASH_KEY and COOKIE_BLOCK_KEY (base64, run `courtsched keys`)")
		}
		if cfg.CookieHashKey, err = decodeB64(hashKey); err != nil {
			return Config{}, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
		}
		if cfg.CookieBlockKey, err = decodeB64(blockKey); err != nil {
			return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
		}
	}

	return cfg, nil
}

// Location resolves the venue timezone. FromEnv already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func decodeB64(s string) ([]byte, error) {
	// allow pointing at a file for secret mounts
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}
