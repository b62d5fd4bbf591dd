// Package config loads daemon settings from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr   string
	APIBaseURL string

	// RedisAddr selects the cross-instance broadcast medium; empty keeps
	// coordination in-process.
	RedisAddr string

	// DataPath is the bbolt file holding the activity log; empty keeps it
	// in memory.
	DataPath string

	LogLevel string

	ElectionWindow       time.Duration
	ReconnectBase        time.Duration
	MaxReconnectAttempts int
	PollInterval         time.Duration
	PollRetryInterval    time.Duration
}

// Load reads the environment. envFile, when non-empty, is loaded first;
// a missing file is not an error so production can rely on real env vars.
func Load(envFile string) *Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	return &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8099"),
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8080"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		DataPath:             os.Getenv("DATA_PATH"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ElectionWindow:       getDuration("ELECTION_WINDOW", 150*time.Millisecond),
		ReconnectBase:        getDuration("RECONNECT_BASE", time.Second),
		MaxReconnectAttempts: getInt("MAX_RECONNECT_ATTEMPTS", 5),
		PollInterval:         getDuration("POLL_INTERVAL", 5*time.Second),
		PollRetryInterval:    getDuration("POLL_RETRY_INTERVAL", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
