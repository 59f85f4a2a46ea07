package logger

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestRedactsCredentialKeys(t *testing.T) {
	log, logs := observed()
	log.Info("summarizer configured", "api_key", "sk-live-123", "Authorization", "Bearer sk-live-123", "endpoint", "https://example.test")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["api_key"] != "[REDACTED]" {
		t.Fatalf("api_key=%v", fields["api_key"])
	}
	if fields["Authorization"] != "[REDACTED]" {
		t.Fatalf("Authorization=%v", fields["Authorization"])
	}
	if fields["endpoint"] != "https://example.test" {
		t.Fatalf("endpoint=%v", fields["endpoint"])
	}
}

func TestRegisteredSecretIsScrubbedFromValuesAndErrors(t *testing.T) {
	RegisterSecret("super-secret-value")
	log, logs := observed()

	log.Warn("call failed", "error", errors.New("dial https://x?key=super-secret-value: refused"), "detail", "got super-secret-value back")

	fields := logs.All()[0].ContextMap()
	for k, v := range fields {
		if strings.Contains(v.(string), "super-secret-value") {
			t.Fatalf("%s leaked secret: %v", k, v)
		}
	}
	if got := Scrub("x super-secret-value y"); got != "x [REDACTED] y" {
		t.Fatalf("Scrub=%q", got)
	}
}

func TestSessionIDIsHashed(t *testing.T) {
	log, logs := observed()
	log.Info("session created", "session_id", "6f1c2a")

	got, _ := logs.All()[0].ContextMap()["session_id"].(string)
	if !strings.HasPrefix(got, "hash:") || strings.Contains(got, "6f1c2a") {
		t.Fatalf("session_id=%q", got)
	}
}
