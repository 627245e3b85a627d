// Package engine implements the appointment and service-board lifecycle:
// availability, slot allocation, status transitions and board actions.
// Every mutating operation authorizes the caller and runs inside one store
// transaction.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/serviceboard/libs/otel"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "booking-engine"

const (
	defaultMonthlyCap = 200
	defaultMaxRange   = 31 * 24 * time.Hour
	defaultSlotStep   = 15 * time.Minute
)

type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Now     func() time.Time
	NewID   func() string
	// DefaultMonthlyCap applies to businesses without a known entitlement.
	// Zero means 200; a negative value disables the cap.
	DefaultMonthlyCap int
	// MaxRange bounds availability queries.
	MaxRange time.Duration
	// SlotStep is the default distance between slot starts.
	SlotStep time.Duration
}

type Engine struct {
	store      store.Store
	logger     *slog.Logger
	metrics    *metrics.Collector
	now        func() time.Time
	newID      func() string
	defaultCap int
	maxRange   time.Duration
	slotStep   time.Duration
}

func New(s store.Store, opts Options) *Engine {
	e := &Engine{
		store:      s,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
		newID:      opts.NewID,
		defaultCap: opts.DefaultMonthlyCap,
		maxRange:   opts.MaxRange,
		slotStep:   opts.SlotStep,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.defaultCap == 0 {
		e.defaultCap = defaultMonthlyCap
	}
	if e.maxRange <= 0 {
		e.maxRange = defaultMaxRange
	}
	if e.slotStep <= 0 {
		e.slotStep = defaultSlotStep
	}
	return e
}

// run executes fn in a store transaction inside a span and records the
// outcome. conflictCode is the code a lost serialization race surfaces as.
func (e *Engine) run(ctx context.Context, op string, scope store.LockScope, conflictCode string, fn func(context.Context, store.Tx) error) error {
	started := time.Now()
	ctx, span := otelx.Start(ctx, tracerName, "engine."+op,
		attribute.String("business.id", scope.BusinessID),
		attribute.String("staff.id", scope.StaffID),
	)

	err := mapStoreError(e.store.WithTx(ctx, scope, fn), conflictCode)

	code := "ok"
	if err != nil {
		code = apperr.CodeOf(err)
		if apperr.KindOf(err) == apperr.KindInternal {
			e.logger.ErrorContext(ctx, "engine operation failed", "op", op, "business_id", scope.BusinessID, "err", err)
		}
	}
	e.metrics.Observe(op, code, started)
	otelx.End(span, err)
	return err
}

// mapStoreError turns store sentinels into typed errors. Typed errors pass
// through untouched and anything else becomes internal.
func mapStoreError(err error, conflictCode string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(conflictCode, "concurrent update")
	case errors.Is(err, store.ErrVersionMismatch):
		return apperr.Conflict(apperr.CodeVersionMismatch, "resource changed since it was read")
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("resource")
	}
	return apperr.Internal(err)
}

// notFound maps store.ErrNotFound to a typed error naming what is missing.
func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(what)
	}
	return err
}
