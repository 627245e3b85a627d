package main

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/serviceboard/libs/config"
	"github.com/md-rashed-zaman/serviceboard/libs/kafkax"
	otelx "github.com/md-rashed-zaman/serviceboard/libs/otel"
)

type settings struct {
	Service  string
	LogLevel string
	Port     string
	GRPCPort string

	DatabaseURL string
	Migrate     bool
	DBMaxConns  int

	KafkaBrokers  string
	KafkaGroupID  string
	ConsumeTopics []string
	TopicPrefix   string
	OutboxPoll    time.Duration
	OutboxBatch   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RatePerMinute int
	Timeout       time.Duration

	JWTSecret string
	JWKSURL   string

	NoShowGrace   time.Duration
	SweepInterval time.Duration
	SweepBatch    int
	DefaultCap    int

	Tracing otelx.Config
}

func loadSettings(src *config.Source) (settings, error) {
	s := settings{
		Service:       src.String("SERVICE_NAME", "booking-service"),
		LogLevel:      src.String("LOG_LEVEL", "info"),
		Migrate:       src.Bool("DB_MIGRATE", false),
		KafkaBrokers:  src.String("KAFKA_BROKERS", ""),
		KafkaGroupID:  src.String("KAFKA_GROUP_ID", "booking-service"),
		TopicPrefix:   src.String("EVENT_TOPIC_PREFIX", ""),
		RedisAddr:     src.String("REDIS_ADDR", ""),
		RedisPassword: src.String("REDIS_PASSWORD", ""),
		JWTSecret:     src.String("JWT_SECRET", ""),
		JWKSURL:       src.String("JWKS_URL", ""),
		ConsumeTopics: kafkax.SplitBrokers(src.String("KAFKA_CONSUME_TOPIC",
			"billing.subscription.activated.v1,billing.subscription.canceled.v1")),
	}

	var errs []error
	var err error
	if s.Port, err = src.Port("PORT", "8083"); err != nil {
		errs = append(errs, err)
	}
	if s.GRPCPort, err = src.Port("GRPC_PORT", "9093"); err != nil {
		errs = append(errs, err)
	}
	if s.DatabaseURL, err = src.RequiredString("DATABASE_URL"); err != nil {
		errs = append(errs, err)
	}
	if s.DBMaxConns, err = src.Int("DB_MAX_CONNS", 0); err != nil {
		errs = append(errs, err)
	}
	if s.OutboxPoll, err = src.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second); err != nil {
		errs = append(errs, err)
	}
	if s.OutboxBatch, err = src.Int("OUTBOX_BATCH_SIZE", 50); err != nil {
		errs = append(errs, err)
	}
	if s.RedisDB, err = src.Int("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if s.RatePerMinute, err = src.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		errs = append(errs, err)
	}
	if s.Timeout, err = src.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if s.NoShowGrace, err = src.Seconds("NO_SHOW_GRACE_SECONDS", 15*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if s.SweepInterval, err = src.Seconds("SWEEP_INTERVAL_SECONDS", time.Minute); err != nil {
		errs = append(errs, err)
	}
	if s.SweepBatch, err = src.Int("SWEEP_BATCH_SIZE", 100); err != nil {
		errs = append(errs, err)
	}
	if s.DefaultCap, err = src.Int("DEFAULT_MONTHLY_CAP", 200); err != nil {
		errs = append(errs, err)
	}
	if s.Tracing, err = otelx.ConfigFrom(src, s.Service); err != nil {
		errs = append(errs, err)
	}
	if s.JWTSecret == "" && s.JWKSURL == "" {
		errs = append(errs, errors.New("JWT_SECRET or JWKS_URL is required"))
	}
	return s, errors.Join(errs...)
}
