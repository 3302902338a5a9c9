package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес публичного HTTP API.
	HTTPAddr string
	// MetricsAddr — адрес служебного сервера метрик и health-проверок.
	MetricsAddr string
	// PostgresDSN — строка подключения к PostgreSQL; пустая строка
	// переключает приложение на in-memory хранилище.
	PostgresDSN string
	// KafkaBrokers — список брокеров через запятую; пустая строка
	// отключает публикацию событий.
	KafkaBrokers string
	// OutboxPollInterval — период опроса transactional outbox.
	OutboxPollInterval time.Duration
	// IdempotencyTTL — срок хранения ключей идемпотентности.
	IdempotencyTTL time.Duration
	// IdempotencyCleanupInterval — период удаления просроченных ключей.
	IdempotencyCleanupInterval time.Duration
}

// DefaultConfig возвращает базовые настройки приложения.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                   ":8080",
		MetricsAddr:                ":9090",
		OutboxPollInterval:         time.Second,
		IdempotencyTTL:             24 * time.Hour,
		IdempotencyCleanupInterval: 10 * time.Minute,
	}
}

// LoadConfig собирает конфигурацию из .env файла и переменных окружения.
// Отсутствие .env не является ошибкой.
func LoadConfig(logger *log.Entry) Config {
	if logger == nil {
		logger = log.WithField("component", "config")
	}
	if err := godotenv.Load(); err == nil {
		logger.Debug(".env file loaded")
	}

	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("STOREFRONT_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STOREFRONT_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_DSN"))
	cfg.KafkaBrokers = strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))

	cfg.OutboxPollInterval = durationFromEnv(logger, "STOREFRONT_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.IdempotencyTTL = durationFromEnv(logger, "STOREFRONT_IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.IdempotencyCleanupInterval = durationFromEnv(logger, "STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)

	return cfg
}

func durationFromEnv(logger *log.Entry, name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		logger.WithField("env", name).WithField("value", raw).Warn("invalid duration, using default")
		return fallback
	}
	return parsed
}
