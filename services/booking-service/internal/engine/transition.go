package engine

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/authz"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/board"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

type TransitionRequest struct {
	BusinessID    string
	AppointmentID string
	Target        model.AppointmentStatus
	Reason        string
	// ExpectedStatus and ExpectedVersion are optional preconditions. When
	// set and stale the call fails with version_mismatch.
	ExpectedStatus  model.AppointmentStatus
	ExpectedVersion int64
	Actor           model.Actor
}

// Transition moves an appointment along the state machine. A repeat of a
// transition that already happened, sent without preconditions, returns
// the stored appointment.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (model.Appointment, error) {
	if _, ok := model.ParseAppointmentStatus(string(req.Target)); !ok {
		return model.Appointment{}, apperr.Validation(apperr.CodeInvalidStatus, "unknown status "+string(req.Target))
	}
	if req.ExpectedStatus != "" {
		if _, ok := model.ParseAppointmentStatus(string(req.ExpectedStatus)); !ok {
			return model.Appointment{}, apperr.Validation(apperr.CodeInvalidStatus, "unknown expected status "+string(req.ExpectedStatus))
		}
	}

	var (
		out     model.Appointment
		from    model.AppointmentStatus
		changed bool
	)
	err := e.run(ctx, "transition", store.LockScope{}, apperr.CodeVersionMismatch, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetAppointment(ctx, req.BusinessID, req.AppointmentID)
		if err != nil {
			return notFound(err, "appointment")
		}
		if err := authz.Check(req.Actor, appointmentResource(cur, req.Target), authz.OpTransition); err != nil {
			return err
		}
		if (req.ExpectedStatus != "" && req.ExpectedStatus != cur.Status) ||
			(req.ExpectedVersion != 0 && req.ExpectedVersion != cur.Version) {
			return apperr.Conflict(apperr.CodeVersionMismatch, "appointment changed since it was read")
		}
		if cur.Status == req.Target && req.ExpectedStatus == "" && req.ExpectedVersion == 0 {
			out = cur
			return nil
		}
		from = cur.Status
		out, err = e.applyTransition(ctx, tx, cur, req.Target, req.Reason, req.Actor, e.now())
		changed = err == nil
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if changed {
		e.metrics.Transition(string(from), string(out.Status))
	}
	return out, nil
}

func appointmentResource(a model.Appointment, target model.AppointmentStatus) authz.Resource {
	return authz.Resource{
		Kind:       authz.ResourceAppointment,
		BusinessID: a.BusinessID,
		OwnerID:    a.CustomerID,
		StaffID:    a.StaffID,
		Target:     target,
	}
}

// applyTransition writes one state machine step. Callers have already
// authorized the actor.
func (e *Engine) applyTransition(ctx context.Context, tx store.Tx, a model.Appointment, to model.AppointmentStatus, reason string, actor model.Actor, now time.Time) (model.Appointment, error) {
	if !lifecycle.ValidTransition(a.Status, to) {
		return model.Appointment{}, apperr.IllegalTransition(string(a.Status), string(to))
	}
	reason = strings.TrimSpace(reason)
	switch to {
	case model.StatusConfirmed:
		if a.BoardID != "" {
			b, err := tx.GetBoard(ctx, a.BusinessID, a.BoardID)
			if err != nil {
				return model.Appointment{}, notFound(err, "board")
			}
			if !board.ApprovalsSettled(b.Actions) {
				return model.Appointment{}, &apperr.Error{
					Kind:    apperr.KindIllegalTransition,
					Code:    apperr.CodeIllegalTransition,
					Message: "board approvals are not complete",
				}
			}
		}
	case model.StatusRescheduled:
		if reason == "" {
			return model.Appointment{}, apperr.Validation(apperr.CodeReasonRequired, "a reason is required to reschedule")
		}
	}

	next := a
	next.Status = to
	next.StatusReason = reason
	next.Version = a.Version + 1
	next.UpdatedAt = now.UTC()
	if err := tx.UpdateAppointmentStatus(ctx, next, a.Version); err != nil {
		return model.Appointment{}, err
	}
	if err := appendAppointmentEvent(ctx, tx, next, a.Status, actor, now); err != nil {
		return model.Appointment{}, err
	}
	return next, nil
}
