package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/md-rashed-zaman/serviceboard/libs/auth"
	"github.com/md-rashed-zaman/serviceboard/libs/config"
	"github.com/md-rashed-zaman/serviceboard/libs/db"
	"github.com/md-rashed-zaman/serviceboard/libs/grpcx"
	"github.com/md-rashed-zaman/serviceboard/libs/httpx"
	"github.com/md-rashed-zaman/serviceboard/libs/kafkax"
	otelx "github.com/md-rashed-zaman/serviceboard/libs/otel"
	"github.com/md-rashed-zaman/serviceboard/libs/runtime"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/sweeper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	src, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	cfg, err := loadSettings(src)
	if err != nil {
		panic(err)
	}
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := probe(context.Background(), "localhost:"+cfg.GRPCPort, cfg.Service); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository()
	store := storage.New(pool, outboxRepo)
	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			logger.Error("schema migration failed", "err", err)
			panic(err)
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New()
	reg.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := engine.New(store, engine.Options{
		Logger:            logger,
		Metrics:           m,
		DefaultMonthlyCap: cfg.DefaultCap,
	})

	go outbox.NewPublisher(pool, outboxRepo, logger, m, outbox.PublisherConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.TopicPrefix,
		PollEvery:   cfg.OutboxPoll,
		BatchSize:   cfg.OutboxBatch,
	}).Run(ctx)

	go consumer.New(logger, store, m, consumer.Config{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topics:  cfg.ConsumeTopics,
	}).Run(ctx)

	go sweeper.New(eng, logger, sweeper.Config{
		Interval:  cfg.SweepInterval,
		Grace:     cfg.NoShowGrace,
		BatchSize: cfg.SweepBatch,
	}).Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	var limiter httpx.Limiter = httpx.NewMemoryLimiter(cfg.RatePerMinute, time.Minute)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		limiter = httpx.NewRedisLimiter(rdb, cfg.RatePerMinute, time.Minute, cfg.Service)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	var keys auth.KeySource
	if cfg.JWKSURL != "" {
		keys = auth.NewJWKSClient(cfg.JWKSURL, 5*time.Minute)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, keys)

	base := runtime.NewBaseMuxWithReady(checks...)
	base.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	router := mux.NewRouter()
	handlers.New(eng, logger).Routes(router, verifier,
		mux.MiddlewareFunc(httpx.RateLimit(limiter, actorOrIP, logger, true)),
		mux.MiddlewareFunc(httpx.WithTimeout(cfg.Timeout)),
	)
	base.Handle("/api/", router)

	httpHandler := httpx.Chain(base,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger, "/healthz", "/readyz", "/metrics"),
		httpx.WithBodyLimit(1<<20),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(httpHandler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	health.SetServingStatus(cfg.Service, healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		if err := grpcx.Serve(ctx, grpcSrv, lis, logger); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	if err := runtime.ServeHTTP(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("http server error", "err", err)
	}
	health.Shutdown()
}

// actorOrIP counts authenticated callers by identity and everyone else by
// client address.
func actorOrIP(r *http.Request) string {
	if a, ok := handlers.ActorFromContext(r.Context()); ok {
		return string(a.Role) + ":" + a.ID
	}
	return httpx.ClientIP(r)
}
