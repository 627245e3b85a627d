package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" k1:9092, ,k2:9092 ")
	if len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestExtractEventMetaFallsBackToTopicAndKey(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "billing.subscription.activated.v1", Key: []byte("biz-1")})
	if meta.EventType != "billing.subscription.activated.v1" {
		t.Fatalf("event type = %q", meta.EventType)
	}
	if meta.EventID != "billing.subscription.activated.v1/biz-1" {
		t.Fatalf("event id = %q", meta.EventID)
	}

	msg := kafka.Message{Headers: EventMeta{EventID: "e-1", EventType: "appointment.cancelled"}.Headers()}
	meta = ExtractEventMeta(msg)
	if meta.EventID != "e-1" || meta.EventType != "appointment.cancelled" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceHeaders(ctx, EventMeta{EventID: "e-1", EventType: "x"}.Headers())
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatal("expected traceparent header to be appended")
	}

	extracted := ExtractTraceContext(context.Background(), kafka.Message{Headers: headers})
	if trace.SpanContextFromContext(extracted).TraceID() != span.SpanContext().TraceID() {
		t.Fatal("trace id not propagated")
	}
}

func TestStartConsumeSpanContinuesProducerTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, producer := tp.Tracer("test").Start(context.Background(), "publish")
	msg := kafka.Message{Topic: "billing.subscription.activated.v1", Headers: InjectTraceHeaders(ctx, nil)}
	producer.End()

	_, span := StartConsumeSpan(context.Background(), msg)
	defer span.End()
	if span.SpanContext().TraceID() != producer.SpanContext().TraceID() {
		t.Fatal("consumer span is not in the producer trace")
	}
	if !span.SpanContext().IsValid() {
		t.Fatal("consumer span not recorded")
	}
}
