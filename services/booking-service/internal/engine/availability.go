package engine

import (
	"context"
	"iter"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

type AvailabilityQuery struct {
	BusinessID string
	StaffID    string
	// ServiceID is optional. It decides whether an unassigned query treats
	// the business as one resource and sets the slot length.
	ServiceID string
	ItemIDs   []string
	From      time.Time
	To        time.Time
}

func (e *Engine) validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return apperr.Validation(apperr.CodeInvalidInput, "from and to are required")
	}
	if !to.After(from) {
		return apperr.Validation(apperr.CodeInvalidInput, "to must be after from")
	}
	if to.Sub(from) > e.maxRange {
		return apperr.Validation(apperr.CodeInvalidInput, "range is too long")
	}
	return nil
}

// Availability resolves the open windows of a business, or of one staff
// member, over [From, To). The sequence is computed from a snapshot taken
// in one transaction and can be ranged over more than once.
func (e *Engine) Availability(ctx context.Context, q AvailabilityQuery) (iter.Seq[availability.Interval], error) {
	if q.BusinessID == "" {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "business_id is required")
	}
	if err := e.validateRange(q.From, q.To); err != nil {
		return nil, err
	}
	var plan availability.Plan
	err := e.run(ctx, "availability", store.LockScope{}, apperr.CodeSlotConflict, func(ctx context.Context, tx store.Tx) error {
		var err error
		plan, _, err = e.loadPlan(ctx, tx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return availability.Windows(plan), nil
}

// Slots lists bookable slots for a service. step <= 0 uses the engine
// default.
func (e *Engine) Slots(ctx context.Context, q AvailabilityQuery, step time.Duration) (iter.Seq[availability.Interval], error) {
	if q.ServiceID == "" {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "service_id is required for slots")
	}
	if q.BusinessID == "" {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "business_id is required")
	}
	if err := e.validateRange(q.From, q.To); err != nil {
		return nil, err
	}
	if step <= 0 {
		step = e.slotStep
	}
	var (
		plan     availability.Plan
		duration time.Duration
	)
	err := e.run(ctx, "slots", store.LockScope{}, apperr.CodeSlotConflict, func(ctx context.Context, tx store.Tx) error {
		var (
			svc model.Service
			err error
		)
		plan, svc, err = e.loadPlan(ctx, tx, q)
		if err != nil {
			return err
		}
		duration, err = serviceDuration(svc, q.ItemIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return availability.Slots(availability.Windows(plan), duration, step), nil
}

func (e *Engine) loadPlan(ctx context.Context, tx store.Tx, q AvailabilityQuery) (availability.Plan, model.Service, error) {
	biz, err := tx.GetBusiness(ctx, q.BusinessID)
	if err != nil {
		return availability.Plan{}, model.Service{}, notFound(err, "business")
	}
	if !biz.Active {
		return availability.Plan{}, model.Service{}, apperr.Conflict(apperr.CodeBusinessInactive, "business is not accepting bookings")
	}
	if q.StaffID != "" {
		if _, err := tx.GetStaff(ctx, q.BusinessID, q.StaffID); err != nil {
			return availability.Plan{}, model.Service{}, notFound(err, "staff")
		}
	}
	var svc model.Service
	if q.ServiceID != "" {
		if svc, err = tx.GetService(ctx, q.BusinessID, q.ServiceID); err != nil {
			return availability.Plan{}, model.Service{}, notFound(err, "service")
		}
	}

	rules, err := tx.ListRules(ctx, q.BusinessID, q.StaffID)
	if err != nil {
		return availability.Plan{}, model.Service{}, err
	}
	busy, err := tx.ListBlocking(ctx, busyQuery(q.BusinessID, q.StaffID, svc, q.From, q.To))
	if err != nil {
		return availability.Plan{}, model.Service{}, err
	}
	return availability.Plan{
		Location:  biz.Location(),
		Rules:     rules,
		Busy:      intervals(busy),
		From:      q.From,
		To:        q.To,
		NotBefore: e.now(),
	}, svc, nil
}

// busyQuery decides which appointments hold time against a request. A staff
// member is blocked by their own and by unassigned appointments. Without a
// staff member the whole business is one resource unless the service needs
// a specific staff member.
func busyQuery(businessID, staffID string, svc model.Service, from, to time.Time) store.BusyQuery {
	return store.BusyQuery{
		BusinessID: businessID,
		StaffID:    staffID,
		AllStaff:   staffID == "" && !svc.RequiresStaff,
		From:       from,
		To:         to,
	}
}

func intervals(appts []model.Appointment) []availability.Interval {
	out := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		out = append(out, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}
	return out
}

// serviceDuration is the service's own duration plus every selected extra
// and line item. Unknown or repeated item ids are rejected.
func serviceDuration(svc model.Service, itemIDs []string) (time.Duration, error) {
	total := svc.DurationMinutes
	seen := map[string]struct{}{}
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return 0, apperr.Validation(apperr.CodeInvalidInput, "item "+id+" selected twice")
		}
		seen[id] = struct{}{}
		item, ok := findItem(svc, id)
		if !ok {
			return 0, apperr.Validation(apperr.CodeInvalidInput, "unknown item "+id)
		}
		total += item.DurationMinutes
	}
	if total <= 0 {
		return 0, apperr.Validation(apperr.CodeInvalidDuration, "service has no duration")
	}
	return time.Duration(total) * time.Minute, nil
}

func findItem(svc model.Service, id string) (model.ServiceItem, bool) {
	for _, items := range [][]model.ServiceItem{svc.Extras, svc.LineItems} {
		for _, it := range items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return model.ServiceItem{}, false
}
