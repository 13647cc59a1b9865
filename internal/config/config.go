// Package config читает настройки trotsky из переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Значения по умолчанию.
const (
	DefaultService     = "https://bsky.social"
	DefaultMetricsPort = "9090"
)

// Config — настройки процесса.
type Config struct {
	// Service — PDS, на котором создаётся сессия (BSKY_SERVICE).
	Service    string
	Identifier string // BSKY_IDENTIFIER
	Password   string // BSKY_PASSWORD

	// RateLimit — запросов в секунду к API (BSKY_RATE_LIMIT), 0 — без лимита.
	RateLimit float64

	JetstreamURL string // JETSTREAM_URL
	RabbitMQURL  string // RABBITMQ_URL
	RedisURL     string // REDIS_URL
	DBURL        string // DB_URL

	MetricsPort string // METRICS_PORT

	// ShutdownTimeout — время на остановку HTTP сервера (SHUTDOWN_TIMEOUT).
	ShutdownTimeout time.Duration
}

// Load читает Config из окружения.
func Load() (*Config, error) {
	cfg := &Config{
		Service:         getenv("BSKY_SERVICE", DefaultService),
		Identifier:      os.Getenv("BSKY_IDENTIFIER"),
		Password:        os.Getenv("BSKY_PASSWORD"),
		JetstreamURL:    os.Getenv("JETSTREAM_URL"),
		RabbitMQURL:     os.Getenv("RABBITMQ_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DBURL:           os.Getenv("DB_URL"),
		MetricsPort:     getenv("METRICS_PORT", DefaultMetricsPort),
		ShutdownTimeout: 5 * time.Second,
	}

	if v := os.Getenv("BSKY_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("BSKY_RATE_LIMIT: invalid value %q", v)
		}
		cfg.RateLimit = rps
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, nil
}

// HasCredentials возвращает true, если заданы логин и пароль.
func (c *Config) HasCredentials() bool {
	return c.Identifier != "" && c.Password != ""
}

// MetricsAddr возвращает адрес для /healthz и /metrics.
func (c *Config) MetricsAddr() string {
	return ":" + c.MetricsPort
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
