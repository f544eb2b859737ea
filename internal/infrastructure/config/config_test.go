package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":8080")
	t.Setenv("SHUTDOWN_TIMEOUT", "10s")

	cfg := Load()

	if cfg.ServerAddress != ":8080" || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected required values: %+v", cfg)
	}
	if cfg.SchedulerTopK != 3 {
		t.Errorf("expected top-k 3, got %d", cfg.SchedulerTopK)
	}
	if cfg.DatabasePath != "mastery.db" {
		t.Errorf("expected default db path, got %q", cfg.DatabasePath)
	}
	if cfg.TracingEnabled {
		t.Error("expected tracing off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "1s")
	t.Setenv("SCHEDULER_TOP_K", "5")
	t.Setenv("TASK_RETRY_DELAY", "2m")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()

	if cfg.SchedulerTopK != 5 {
		t.Errorf("expected top-k 5, got %d", cfg.SchedulerTopK)
	}
	if cfg.TaskRetryDelay != 2*time.Minute {
		t.Errorf("expected retry delay 2m, got %v", cfg.TaskRetryDelay)
	}
	if !cfg.TracingEnabled || cfg.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
}
