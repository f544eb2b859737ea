package logger_test

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
)

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := logger.FromZap(zap.New(core)).With("component", "lifecycle")

	log.Warn("answer without concept", "quiz_id", "q-1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "lifecycle" || fields["quiz_id"] != "q-1" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[0].Level)
	}
}

func TestNew_WritesToFile(t *testing.T) {
	path := t.TempDir() + "/app.log"
	log := logger.New("prod", path)
	log.Info("started", "addr", ":8080")
	log.Sync()
}
