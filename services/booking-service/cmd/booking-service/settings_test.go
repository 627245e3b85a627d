package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/serviceboard/libs/config"
)

func TestLoadSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booking.toml")
	body := `
database_url = "postgres://localhost/booking"
jwt_secret = "s3cret"

[kafka]
brokers = ["k1:9092"]
consume_topic = "billing.subscription.activated.v1"

[no_show]
grace_seconds = 600
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := loadSettings(src)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.KafkaBrokers != "k1:9092" || len(s.ConsumeTopics) != 1 {
		t.Fatalf("kafka settings: %+v", s)
	}
	if s.NoShowGrace != 10*time.Minute || s.SweepInterval != time.Minute || s.DefaultCap != 200 {
		t.Fatalf("sweep settings: %+v", s)
	}
	if s.Port != "8083" || s.GRPCPort != "9093" {
		t.Fatalf("ports: %s %s", s.Port, s.GRPCPort)
	}
}

func TestLoadSettingsReportsEveryProblem(t *testing.T) {
	t.Setenv("SWEEP_BATCH_SIZE", "lots")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWKS_URL", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	_, err := loadSettings(&config.Source{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DATABASE_URL", "SWEEP_BATCH_SIZE", "JWT_SECRET", "OTEL_SAMPLING_RATIO"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
