// Package config reads the deployment configuration from the environment.
// Values are read once at process start; mid-run changes are not supported.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Source registry
	RegistryPath string

	// Pipeline
	FetchTimeout   time.Duration
	CycleDeadline  time.Duration
	WorkerPool     int
	StaleThreshold float64

	// Payload cache (empty RedisAddr disables the cache tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Background aggregation (empty disables the cron job)
	PollSchedule string

	LogLevel string
}

func Load() *Config {
	return &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		RegistryPath:   getEnv("REGISTRY_PATH", "sources.yml"),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		CycleDeadline:  getEnvDuration("CYCLE_DEADLINE", 25*time.Second),
		WorkerPool:     getEnvInt("WORKER_POOL", 8),
		StaleThreshold: getEnvFloat("STALE_THRESHOLD", 0.8),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		CacheTTL:       getEnvDuration("CACHE_TTL", 60*time.Second),
		PollSchedule:   getEnv("POLL_SCHEDULE", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
