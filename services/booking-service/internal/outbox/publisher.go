package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/serviceboard/libs/db"
	"github.com/md-rashed-zaman/serviceboard/libs/kafkax"
	otelx "github.com/md-rashed-zaman/serviceboard/libs/otel"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/metrics"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	db          db.Beginner
	repo        *Repository
	writer      MessageWriter
	logger      *slog.Logger
	metrics     *metrics.Collector
	topicPrefix string
	pollEvery   time.Duration
	batchSize   int
}

type PublisherConfig struct {
	Brokers     string
	TopicPrefix string
	PollEvery   time.Duration
	BatchSize   int
}

// NewPublisher returns nil when no brokers are configured.
func NewPublisher(pool db.Beginner, repo *Repository, logger *slog.Logger, m *metrics.Collector, cfg PublisherConfig) *Publisher {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return nil
	}
	return newPublisher(pool, repo, kafkax.NewWriter(brokers), logger, m, cfg)
}

func newPublisher(pool db.Beginner, repo *Repository, w MessageWriter, logger *slog.Logger, m *metrics.Collector, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:          pool,
		repo:        repo,
		writer:      w,
		logger:      logger,
		metrics:     m,
		topicPrefix: cfg.TopicPrefix,
		pollEvery:   cfg.PollEvery,
		batchSize:   cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p == nil {
		return
	}
	defer p.writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// publishBatch writes one batch and marks it published in the same
// transaction. A failed write leaves the rows for the next tick, so
// delivery is at least once.
func (p *Publisher) publishBatch(ctx context.Context) error {
	return db.WithTx(ctx, p.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}
		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, Message(ctx, p.topicPrefix, r))
			ids = append(ids, r.ID)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
			return err
		}
		p.metrics.Published(len(records))
		return nil
	})
}

// Message renders an outbox row as a Kafka message keyed by aggregate, with
// event metadata and the stored trace context as headers.
func Message(ctx context.Context, topicPrefix string, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic:   topicPrefix + r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}.Headers(),
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
