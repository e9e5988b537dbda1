package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port '8080', got '%s'", cfg.Port)
	}
	if cfg.MigrationsPath != "migrations" {
		t.Errorf("expected default migrations path, got '%s'", cfg.MigrationsPath)
	}
	if cfg.KafkaBrokers != "" {
		t.Errorf("expected empty Kafka brokers by default, got '%s'", cfg.KafkaBrokers)
	}
	if cfg.KafkaConsumerGroup != "hookfy-webhooks" {
		t.Errorf("expected default consumer group, got '%s'", cfg.KafkaConsumerGroup)
	}
	if cfg.DispatchWorkers != 4 {
		t.Errorf("expected default worker count 4, got %d", cfg.DispatchWorkers)
	}
	if cfg.DispatchQueueSize != 1024 {
		t.Errorf("expected default queue size 1024, got %d", cfg.DispatchQueueSize)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("WEBHOOK_WORKERS", "8")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("WEBHOOK_WORKERS")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.DispatchWorkers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.DispatchWorkers)
	}
}

func TestGetEnvFallback(t *testing.T) {
	result := getEnv("NONEXISTENT_VAR_12345", "fallback")
	if result != "fallback" {
		t.Errorf("expected 'fallback', got '%s'", result)
	}
}

func TestGetEnvIntRejectsGarbage(t *testing.T) {
	os.Setenv("HOOKFY_TEST_INT", "not-a-number")
	defer os.Unsetenv("HOOKFY_TEST_INT")

	if got := getEnvInt("HOOKFY_TEST_INT", 7); got != 7 {
		t.Errorf("expected fallback 7 for non-numeric value, got %d", got)
	}

	os.Setenv("HOOKFY_TEST_INT", "-3")
	if got := getEnvInt("HOOKFY_TEST_INT", 7); got != 7 {
		t.Errorf("expected fallback 7 for negative value, got %d", got)
	}
}
