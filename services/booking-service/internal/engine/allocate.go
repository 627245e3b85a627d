package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/authz"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

type AllocateRequest struct {
	BusinessID string
	ServiceID  string
	// StaffID is optional; empty books the business without an assignee.
	StaffID    string
	CustomerID string
	// ServiceRequestID links an existing request. Empty creates one.
	ServiceRequestID string
	ItemIDs          []string
	Urgent           bool
	Start            time.Time
	End              time.Time
	Notes            string
	IdempotencyKey   string
	Actor            model.Actor
}

type Allocation struct {
	Appointment model.Appointment
	Board       model.Board
	// Replayed is set when the idempotency key matched an earlier booking.
	Replayed bool
}

// Allocate books [Start, End) for a customer. Availability is re-resolved
// inside the transaction, so of several concurrent requests for one window
// exactly one succeeds and the rest fail with slot_conflict.
func (e *Engine) Allocate(ctx context.Context, req AllocateRequest) (Allocation, error) {
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.CustomerID == "" && req.Actor.Role == model.RoleCustomer {
		req.CustomerID = req.Actor.ID
	}
	switch {
	case req.BusinessID == "" || req.ServiceID == "":
		return Allocation{}, apperr.Validation(apperr.CodeInvalidInput, "business_id and service_id are required")
	case req.CustomerID == "":
		return Allocation{}, apperr.Validation(apperr.CodeInvalidInput, "customer_id is required")
	case req.Start.IsZero() || !req.End.After(req.Start):
		return Allocation{}, apperr.Validation(apperr.CodeInvalidInput, "end must be after start")
	}
	var out Allocation
	scope := store.LockScope{BusinessID: req.BusinessID, StaffID: req.StaffID}
	err := e.run(ctx, "allocate", scope, apperr.CodeSlotConflict, func(ctx context.Context, tx store.Tx) error {
		if err := authz.Check(req.Actor, authz.Resource{
			Kind:       authz.ResourceAppointment,
			BusinessID: req.BusinessID,
			OwnerID:    req.CustomerID,
			StaffID:    req.StaffID,
		}, authz.OpAllocate); err != nil {
			return err
		}
		var err error
		out, err = e.allocate(ctx, tx, req)
		return err
	})
	if err != nil {
		return Allocation{}, err
	}
	if !out.Replayed {
		e.logger.InfoContext(ctx, "appointment scheduled",
			"business_id", out.Appointment.BusinessID,
			"appointment_id", out.Appointment.ID,
			"staff_id", out.Appointment.StaffID,
			"start", out.Appointment.StartTime,
		)
	}
	return out, nil
}

func (e *Engine) allocate(ctx context.Context, tx store.Tx, req AllocateRequest) (Allocation, error) {
	now := e.now()

	if req.IdempotencyKey != "" {
		id, err := tx.ClaimIdempotencyKey(ctx, req.BusinessID, req.IdempotencyKey)
		if err != nil {
			return Allocation{}, err
		}
		if id != "" {
			appt, err := tx.GetAppointment(ctx, req.BusinessID, id)
			if err != nil {
				return Allocation{}, notFound(err, "appointment")
			}
			// Keys are scoped per business; a key another customer already
			// used must not reveal their booking.
			if appt.CustomerID != req.CustomerID {
				return Allocation{}, apperr.Conflict(apperr.CodeIdempotencyKeyReused, "idempotency key was used for another booking")
			}
			if err := authz.Check(req.Actor, appointmentResource(appt, appt.Status), authz.OpRead); err != nil {
				return Allocation{}, err
			}
			b, err := tx.GetBoard(ctx, req.BusinessID, appt.BoardID)
			if err != nil {
				return Allocation{}, notFound(err, "board")
			}
			return Allocation{Appointment: appt, Board: b, Replayed: true}, nil
		}
	}

	biz, err := tx.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return Allocation{}, notFound(err, "business")
	}
	if !biz.Active {
		return Allocation{}, apperr.Conflict(apperr.CodeBusinessInactive, "business is not accepting bookings")
	}
	svc, err := tx.GetService(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return Allocation{}, notFound(err, "service")
	}
	if !svc.Active {
		return Allocation{}, apperr.Validation(apperr.CodeServiceInactive, "service is not offered")
	}
	if req.StaffID != "" {
		st, err := tx.GetStaff(ctx, req.BusinessID, req.StaffID)
		if err != nil {
			return Allocation{}, notFound(err, "staff")
		}
		if !st.Active {
			return Allocation{}, apperr.Validation(apperr.CodeInvalidInput, "staff member is not taking bookings")
		}
	} else if svc.RequiresStaff {
		return Allocation{}, apperr.Validation(apperr.CodeStaffRequired, "service requires a staff member")
	}

	var sr model.ServiceRequest
	if req.ServiceRequestID != "" {
		sr, err = tx.GetServiceRequest(ctx, req.BusinessID, req.ServiceRequestID)
		if err != nil {
			return Allocation{}, notFound(err, "service request")
		}
		if sr.CustomerID != req.CustomerID || sr.ServiceID != req.ServiceID {
			return Allocation{}, apperr.Validation(apperr.CodeInvalidInput, "service request belongs to another customer or service")
		}
		if len(req.ItemIDs) == 0 {
			req.ItemIDs = sr.ItemIDs
		}
	}

	want, err := serviceDuration(svc, req.ItemIDs)
	if err != nil {
		return Allocation{}, err
	}
	if req.End.Sub(req.Start) != want {
		return Allocation{}, apperr.Validation(apperr.CodeInvalidDuration, "window must last "+want.String())
	}
	if req.Start.Before(now) {
		return Allocation{}, apperr.Conflict(apperr.CodeOutOfRange, "window is in the past")
	}
	if err := e.checkMonthlyCap(ctx, tx, req.BusinessID, req.Start); err != nil {
		return Allocation{}, err
	}

	window := availability.Interval{Start: req.Start, End: req.End}
	rules, err := tx.ListRules(ctx, req.BusinessID, req.StaffID)
	if err != nil {
		return Allocation{}, err
	}
	open := availability.Windows(availability.Plan{
		Location:  biz.Location(),
		Rules:     rules,
		From:      req.Start,
		To:        req.End,
		NotBefore: now,
	})
	if !availability.Covers(open, window) {
		return Allocation{}, apperr.Conflict(apperr.CodeOutOfRange, "window is outside availability")
	}
	busy, err := tx.ListBlocking(ctx, busyQuery(req.BusinessID, req.StaffID, svc, req.Start, req.End))
	if err != nil {
		return Allocation{}, err
	}
	if availability.OverlapsAny(window, intervals(busy)) {
		return Allocation{}, apperr.Conflict(apperr.CodeSlotConflict, "window is already booked")
	}

	if sr.ID == "" {
		sr = model.ServiceRequest{
			ID:         e.newID(),
			BusinessID: req.BusinessID,
			CustomerID: req.CustomerID,
			ServiceID:  req.ServiceID,
			Urgent:     req.Urgent,
			ItemIDs:    req.ItemIDs,
		}
		if err := tx.InsertServiceRequest(ctx, &sr); err != nil {
			return Allocation{}, err
		}
	}
	b, err := tx.GetBoardByRequest(ctx, req.BusinessID, sr.ID)
	if errors.Is(err, store.ErrNotFound) {
		b = model.Board{
			ID:               e.newID(),
			BusinessID:       req.BusinessID,
			ServiceRequestID: sr.ID,
			Ref:              e.newID(),
			CustomerID:       req.CustomerID,
		}
		err = tx.InsertBoard(ctx, &b)
	}
	if err != nil {
		return Allocation{}, err
	}

	appt := model.Appointment{
		ID:               e.newID(),
		BusinessID:       req.BusinessID,
		ServiceID:        req.ServiceID,
		StaffID:          req.StaffID,
		CustomerID:       req.CustomerID,
		ServiceRequestID: sr.ID,
		BoardID:          b.ID,
		StartTime:        req.Start.UTC(),
		EndTime:          req.End.UTC(),
		Status:           model.StatusScheduled,
		Notes:            strings.TrimSpace(req.Notes),
		Version:          1,
	}
	if err := tx.InsertAppointment(ctx, &appt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Allocation{}, apperr.Conflict(apperr.CodeSlotConflict, "window is already booked")
		}
		return Allocation{}, err
	}
	if req.IdempotencyKey != "" {
		if err := tx.SaveIdempotencyKey(ctx, req.BusinessID, req.IdempotencyKey, appt.ID); err != nil {
			return Allocation{}, err
		}
	}
	if err := appendAppointmentEvent(ctx, tx, appt, "", req.Actor, now); err != nil {
		return Allocation{}, err
	}
	return Allocation{Appointment: appt, Board: b}, nil
}

// checkMonthlyCap counts bookings in the UTC month of start against the
// business entitlement.
func (e *Engine) checkMonthlyCap(ctx context.Context, tx store.Tx, businessID string, start time.Time) error {
	limit := e.defaultCap
	if n, ok, err := tx.MonthlyCap(ctx, businessID); err != nil {
		return err
	} else if ok && n > 0 {
		limit = n
	}
	if limit <= 0 {
		return nil
	}
	s := start.UTC()
	monthStart := time.Date(s.Year(), s.Month(), 1, 0, 0, 0, 0, time.UTC)
	count, err := tx.CountBooked(ctx, businessID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return err
	}
	if count >= limit {
		return apperr.Conflict(apperr.CodePlanLimit, "monthly appointment limit reached")
	}
	return nil
}
