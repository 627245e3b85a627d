// Package consumer applies billing entitlement events to the local limits
// table. Every event id is recorded in the inbox in the same transaction as
// its effect, so redelivered events are skipped.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/serviceboard/libs/kafkax"
	otelx "github.com/md-rashed-zaman/serviceboard/libs/otel"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// EntitlementStore persists entitlements idempotently per event id.
type EntitlementStore interface {
	ApplyEntitlements(ctx context.Context, eventID, eventType string, ent model.Entitlements) (bool, error)
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

type Consumer struct {
	reader  MessageReader
	store   EntitlementStore
	logger  *slog.Logger
	metrics *metrics.Collector
	backoff time.Duration
}

// New returns nil when no brokers or topics are configured.
func New(logger *slog.Logger, store EntitlementStore, m *metrics.Collector, cfg Config) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	var topics []string
	for _, t := range cfg.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(brokers) == 0 || len(topics) == 0 {
		logger.Warn("entitlement consumer disabled", "brokers", len(brokers), "topics", len(topics))
		return nil
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(reader, store, logger, m)
}

func newConsumer(reader MessageReader, store EntitlementStore, logger *slog.Logger, m *metrics.Collector) *Consumer {
	return &Consumer{reader: reader, store: store, logger: logger, metrics: m, backoff: time.Second}
}

// Run reads until ctx is cancelled. A nil consumer returns at once.
func (c *Consumer) Run(ctx context.Context) {
	if c == nil {
		return
	}
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	ctx, span := kafkax.StartConsumeSpan(ctx, msg)

	result, err := c.apply(ctx, meta, msg.Value)
	otelx.End(span, err)
	c.metrics.Consumed(meta.EventType, result)
	switch {
	case err != nil:
		c.logger.Error("entitlement event failed", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
	case result == resultDuplicate:
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
	case result == resultInvalid:
		c.logger.Warn("invalid entitlement event dropped", "event_id", meta.EventID, "topic", msg.Topic)
	}
}

const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
	resultError     = "error"
)

var errInvalidEvent = errors.New("invalid entitlement event")

func (c *Consumer) apply(ctx context.Context, meta kafkax.EventMeta, value []byte) (string, error) {
	ent, err := Decode(value)
	if err != nil {
		return resultInvalid, nil
	}
	applied, err := c.store.ApplyEntitlements(ctx, meta.EventID, meta.EventType, ent)
	if err != nil {
		return resultError, err
	}
	if !applied {
		return resultDuplicate, nil
	}
	return resultApplied, nil
}

// Decode parses an activated or canceled subscription event. Both carry
// the limit that is now in force.
func Decode(value []byte) (model.Entitlements, error) {
	var payload struct {
		BusinessID             string `json:"business_id"`
		Tier                   string `json:"tier"`
		MaxMonthlyAppointments int    `json:"max_monthly_appointments"`
	}
	if err := json.Unmarshal(value, &payload); err != nil {
		return model.Entitlements{}, errors.Join(errInvalidEvent, err)
	}
	ent := model.Entitlements{
		BusinessID:             strings.TrimSpace(payload.BusinessID),
		Tier:                   strings.TrimSpace(strings.ToLower(payload.Tier)),
		MaxMonthlyAppointments: payload.MaxMonthlyAppointments,
	}
	if ent.BusinessID == "" || ent.Tier == "" || ent.MaxMonthlyAppointments <= 0 {
		return model.Entitlements{}, errInvalidEvent
	}
	return ent, nil
}
