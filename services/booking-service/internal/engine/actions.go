package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/authz"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/board"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

type CreateActionRequest struct {
	BusinessID string
	BoardID    string
	Type       model.ActionType
	Payload    json.RawMessage
	Actor      model.Actor
}

// CreateAction appends a pending action to a board.
func (e *Engine) CreateAction(ctx context.Context, req CreateActionRequest) (model.Action, error) {
	if _, ok := model.ParseActionType(string(req.Type)); !ok {
		return model.Action{}, apperr.Validation(apperr.CodeInvalidInput, "unknown action type "+string(req.Type))
	}
	payload, err := board.DecodePayload(req.Type, req.Payload)
	if err != nil {
		return model.Action{}, err
	}

	var out model.Action
	err = e.run(ctx, "create_action", store.LockScope{}, apperr.CodeVersionMismatch, func(ctx context.Context, tx store.Tx) error {
		now := e.now()
		b, err := tx.GetBoard(ctx, req.BusinessID, req.BoardID)
		if err != nil {
			return notFound(err, "board")
		}
		if err := authz.Check(req.Actor, authz.Resource{
			Kind:       authz.ResourceBoard,
			BusinessID: b.BusinessID,
			OwnerID:    b.CustomerID,
			ActionType: req.Type,
		}, authz.OpCreateAction); err != nil {
			return err
		}
		if p, ok := payload.(model.ReschedulePayload); ok {
			if _, err := rescheduleTarget(ctx, tx, b, p); err != nil {
				return err
			}
		}

		out = model.Action{
			ID:        e.newID(),
			BoardID:   b.ID,
			Type:      req.Type,
			Status:    model.ActionPending,
			Payload:   payload,
			CreatedBy: req.Actor.ID,
			Version:   1,
		}
		if err := tx.InsertAction(ctx, &out); err != nil {
			return err
		}
		return appendActionEvent(ctx, tx, outbox.ActionCreated, b.BusinessID, out, req.Actor, now)
	})
	if err != nil {
		return model.Action{}, err
	}
	e.metrics.Action(string(out.Type), string(out.Status))
	return out, nil
}

// rescheduleTarget loads the appointment a reschedule request points at and
// checks it is still scheduled at the recorded time.
func rescheduleTarget(ctx context.Context, tx store.Tx, b model.Board, p model.ReschedulePayload) (model.Appointment, error) {
	appt, err := tx.GetAppointment(ctx, b.BusinessID, p.AppointmentID)
	if err != nil {
		return model.Appointment{}, notFound(err, "appointment")
	}
	if appt.BoardID != b.ID {
		return model.Appointment{}, apperr.Validation(apperr.CodeInvalidInput, "appointment is not on this board")
	}
	if appt.Status != model.StatusScheduled || !appt.StartTime.Equal(p.CurrentDatetime) {
		return model.Appointment{}, apperr.Conflict(apperr.CodeStaleRequest, "appointment no longer matches the request")
	}
	return appt, nil
}

type ApplyActionRequest struct {
	BusinessID string
	BoardID    string
	ActionID   string
	Decision   board.Decision
	// Percent, Note and Status update progress and custom actions on a
	// progress decision.
	Percent *int
	Note    string
	Status  string
	Actor   model.Actor
}

// ApplyAction records a decision on a board action. Cascades onto
// appointments happen in the same transaction as the action update.
func (e *Engine) ApplyAction(ctx context.Context, req ApplyActionRequest) (model.Action, error) {
	if _, ok := board.ParseDecision(string(req.Decision)); !ok {
		return model.Action{}, apperr.Validation(apperr.CodeInvalidInput, "unknown decision "+string(req.Decision))
	}
	var (
		out         model.Action
		transitions [][2]model.AppointmentStatus
	)
	err := e.run(ctx, "apply_action", store.LockScope{}, apperr.CodeVersionMismatch, func(ctx context.Context, tx store.Tx) error {
		transitions = transitions[:0]
		now := e.now()
		b, err := tx.GetBoard(ctx, req.BusinessID, req.BoardID)
		if err != nil {
			return notFound(err, "board")
		}
		cur, err := tx.GetAction(ctx, b.ID, req.ActionID)
		if err != nil {
			return notFound(err, "action")
		}
		if err := authz.Check(req.Actor, authz.Resource{
			Kind:       authz.ResourceAction,
			BusinessID: b.BusinessID,
			OwnerID:    b.CustomerID,
			ActionType: cur.Type,
		}, authz.OpApplyAction); err != nil {
			return err
		}

		var next model.Action
		if cur.Type == model.ActionApproval {
			var changed bool
			next, changed, err = board.DecideApproval(cur, req.Actor.ID, req.Decision, now)
			if err != nil {
				return err
			}
			if !changed {
				out = cur
				return nil
			}
		} else {
			if cur.Status != model.ActionPending {
				return apperr.Conflict(apperr.CodeActionDecided, "action already decided")
			}
			cascade := func(a model.Appointment, to model.AppointmentStatus, reason string) error {
				if err := authz.Check(req.Actor, appointmentResource(a, to), authz.OpTransition); err != nil {
					return err
				}
				moved, err := e.applyTransition(ctx, tx, a, to, reason, req.Actor, now)
				if err != nil {
					return err
				}
				transitions = append(transitions, [2]model.AppointmentStatus{a.Status, moved.Status})
				return nil
			}
			next, err = e.decide(ctx, tx, b, cur, req, cascade)
			if err != nil {
				return err
			}
		}

		next.Version = cur.Version + 1
		next.UpdatedAt = now.UTC()
		if err := tx.UpdateAction(ctx, next, cur.Version); err != nil {
			return err
		}
		out = next
		switch {
		case next.Status == cur.Status:
			return nil
		case next.Status == model.ActionCompleted:
			return appendActionEvent(ctx, tx, outbox.ActionCompleted, b.BusinessID, next, req.Actor, now)
		case next.Status == model.ActionRejected:
			return appendActionEvent(ctx, tx, outbox.ActionRejected, b.BusinessID, next, req.Actor, now)
		}
		return nil
	})
	if err != nil {
		return model.Action{}, err
	}
	e.metrics.Action(string(out.Type), string(out.Status))
	for _, t := range transitions {
		e.metrics.Transition(string(t[0]), string(t[1]))
	}
	return out, nil
}

type cascadeFunc func(a model.Appointment, to model.AppointmentStatus, reason string) error

// decide applies a decision to a pending non-approval action.
func (e *Engine) decide(ctx context.Context, tx store.Tx, b model.Board, a model.Action, req ApplyActionRequest, cascade cascadeFunc) (model.Action, error) {
	next := a
	switch p := a.Payload.(type) {
	case model.ReschedulePayload:
		switch req.Decision {
		case board.DecisionApprove, board.DecisionComplete:
			appt, err := rescheduleTarget(ctx, tx, b, p)
			if err != nil {
				return model.Action{}, err
			}
			if err := cascade(appt, model.StatusRescheduled, p.Reason); err != nil {
				return model.Action{}, err
			}
			next.Status = model.ActionCompleted
		case board.DecisionReject:
			next.Status = model.ActionRejected
		default:
			return model.Action{}, apperr.Validation(apperr.CodeInvalidInput, "reschedule requests take approve or reject")
		}

	case model.RejectionPayload:
		if req.Decision == board.DecisionProgress {
			return model.Action{}, apperr.Validation(apperr.CodeInvalidInput, "rejections cannot record progress")
		}
		reason := p.Reason
		if reason == "" {
			reason = "rejected on service board"
		}
		appts, err := tx.ListBoardAppointments(ctx, b.BusinessID, b.ID, model.BlockingStatuses)
		if err != nil {
			return model.Action{}, err
		}
		for _, appt := range appts {
			if err := cascade(appt, model.StatusCancelled, reason); err != nil {
				return model.Action{}, err
			}
		}
		next.Status = model.ActionRejected

	case model.ProgressPayload:
		switch req.Decision {
		case board.DecisionProgress:
			if req.Percent != nil {
				if *req.Percent < 0 || *req.Percent > 100 {
					return model.Action{}, apperr.Validation(apperr.CodeInvalidInput, "percent must be between 0 and 100")
				}
				p.Percent = *req.Percent
			}
			if req.Note != "" {
				p.Note = req.Note
			}
			next.Payload = p
		case board.DecisionComplete:
			p.Percent = 100
			next.Payload = p
			next.Status = model.ActionCompleted
		case board.DecisionReject:
			next.Status = model.ActionRejected
		default:
			return model.Action{}, apperr.Validation(apperr.CodeInvalidInput, "progress actions take progress, complete or reject")
		}

	case model.CustomPayload:
		switch req.Decision {
		case board.DecisionProgress:
			if req.Status != "" {
				p.Status = req.Status
			}
			next.Payload = p
		case board.DecisionComplete:
			next.Status = model.ActionCompleted
		case board.DecisionReject:
			next.Status = model.ActionRejected
		default:
			return model.Action{}, apperr.Validation(apperr.CodeInvalidInput, "custom actions take progress, complete or reject")
		}

	default:
		return model.Action{}, apperr.Internal(errUnknownPayload)
	}
	return next, nil
}

type BulkCancelRequest struct {
	BusinessID string
	BoardID    string
	// Status selects which appointments of the board are cancelled:
	// scheduled or confirmed.
	Status model.AppointmentStatus
	Reason string
	Actor  model.Actor
}

// CancelBoardAppointments cancels every appointment of a board that is
// currently in req.Status. Appointments already cancelled are left alone,
// so repeating the call returns an empty list.
func (e *Engine) CancelBoardAppointments(ctx context.Context, req BulkCancelRequest) ([]model.Appointment, error) {
	if !req.Status.Blocking() {
		return nil, apperr.Validation(apperr.CodeInvalidStatus, "status must be scheduled or confirmed")
	}
	var out []model.Appointment
	err := e.run(ctx, "cancel_board_appointments", store.LockScope{}, apperr.CodeVersionMismatch, func(ctx context.Context, tx store.Tx) error {
		out = out[:0]
		now := e.now()
		b, err := tx.GetBoard(ctx, req.BusinessID, req.BoardID)
		if err != nil {
			return notFound(err, "board")
		}
		appts, err := tx.ListBoardAppointments(ctx, b.BusinessID, b.ID, []model.AppointmentStatus{req.Status})
		if err != nil {
			return err
		}
		for _, a := range appts {
			if err := authz.Check(req.Actor, appointmentResource(a, model.StatusCancelled), authz.OpTransition); err != nil {
				return err
			}
			moved, err := e.applyTransition(ctx, tx, a, model.StatusCancelled, req.Reason, req.Actor, now)
			if err != nil {
				return err
			}
			out = append(out, moved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for range out {
		e.metrics.Transition(string(req.Status), string(model.StatusCancelled))
	}
	return out, nil
}

var errUnknownPayload = errors.New("action has no known payload")
