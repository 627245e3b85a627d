package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFlattensTables(t *testing.T) {
	path := writeTOML(t, `
port = 8090

[kafka]
brokers = ["k1:9092", "k2:9092"]

[sweep]
interval_seconds = 30
`)
	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := src.String("KAFKA_BROKERS", ""); got != "k1:9092,k2:9092" {
		t.Fatalf("KAFKA_BROKERS = %q", got)
	}
	port, err := src.Port("PORT", "8083")
	if err != nil || port != "8090" {
		t.Fatalf("PORT = %q, %v", port, err)
	}
	d, err := src.Seconds("SWEEP_INTERVAL_SECONDS", time.Minute)
	if err != nil || d != 30*time.Second {
		t.Fatalf("SWEEP_INTERVAL_SECONDS = %v, %v", d, err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeTOML(t, `redis_addr = "file:6379"`)
	t.Setenv("REDIS_ADDR", "env:6379")

	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := src.String("REDIS_ADDR", ""); got != "env:6379" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("SWEEP_BATCH_SIZE", "abc")
	t.Setenv("OTEL_ENABLED", "off")

	src := &Source{}
	if _, err := src.Int("SWEEP_BATCH_SIZE", 10); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
	if n, err := src.Int("MISSING_INT", 7); err != nil || n != 7 {
		t.Fatalf("fallback int = %d, %v", n, err)
	}
	if src.Bool("OTEL_ENABLED", true) {
		t.Fatal("expected false")
	}
	if _, err := src.RequiredString("DATABASE_URL_NOT_SET"); err == nil {
		t.Fatal("expected required error")
	}
	if _, err := src.Port("PORT_NOT_SET", "70000"); err == nil {
		t.Fatal("expected invalid port error")
	}
}
