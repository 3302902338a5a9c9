package app

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.PostgresDSN != "" || cfg.KafkaBrokers != "" {
		t.Error("external systems must be disabled by default")
	}
	if cfg.OutboxPollInterval != time.Second {
		t.Errorf("unexpected outbox poll interval: %s", cfg.OutboxPollInterval)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("unexpected idempotency ttl: %s", cfg.IdempotencyTTL)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_ADDR", ":8181")
	t.Setenv("STOREFRONT_METRICS_ADDR", ":9191")
	t.Setenv("STOREFRONT_POSTGRES_DSN", "postgres://localhost/storefront")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("STOREFRONT_OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("STOREFRONT_IDEMPOTENCY_TTL", "1h")

	cfg := LoadConfig(nil)

	if cfg.HTTPAddr != ":8181" {
		t.Errorf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9191" {
		t.Errorf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.PostgresDSN != "postgres://localhost/storefront" {
		t.Errorf("unexpected dsn: %s", cfg.PostgresDSN)
	}
	if cfg.KafkaBrokers != "broker-1:9092,broker-2:9092" {
		t.Errorf("unexpected brokers: %s", cfg.KafkaBrokers)
	}
	if cfg.OutboxPollInterval != 250*time.Millisecond {
		t.Errorf("unexpected poll interval: %s", cfg.OutboxPollInterval)
	}
	if cfg.IdempotencyTTL != time.Hour {
		t.Errorf("unexpected ttl: %s", cfg.IdempotencyTTL)
	}
}

func TestLoadConfig_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_OUTBOX_POLL_INTERVAL", "not-a-duration")
	t.Setenv("STOREFRONT_IDEMPOTENCY_TTL", "-5s")

	cfg := LoadConfig(nil)

	if cfg.OutboxPollInterval != time.Second {
		t.Errorf("expected default poll interval, got %s", cfg.OutboxPollInterval)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("expected default ttl, got %s", cfg.IdempotencyTTL)
	}
}
