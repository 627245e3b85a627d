package engine

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/authz"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

const noShowReason = "no check-in before the grace period ended"

// SweepNoShows moves confirmed appointments that ended before cutoff to
// no_show as the system actor. Each appointment gets its own transaction;
// one that changed concurrently is skipped. It returns how many moved.
func (e *Engine) SweepNoShows(ctx context.Context, cutoff time.Time, batch int) (int, error) {
	var overdue []model.Appointment
	err := e.run(ctx, "sweep_list", store.LockScope{}, apperr.CodeVersionMismatch, func(ctx context.Context, tx store.Tx) error {
		var err error
		overdue, err = tx.ListOverdueConfirmed(ctx, cutoff, batch)
		return err
	})
	if err != nil {
		return 0, err
	}

	system := model.SystemActor()
	moved := 0
	for _, a := range overdue {
		if ctx.Err() != nil {
			break
		}
		err := e.run(ctx, "sweep_no_show", store.LockScope{BusinessID: a.BusinessID, StaffID: a.StaffID}, apperr.CodeVersionMismatch, func(ctx context.Context, tx store.Tx) error {
			if err := authz.Check(system, appointmentResource(a, model.StatusNoShow), authz.OpTransition); err != nil {
				return err
			}
			_, err := e.applyTransition(ctx, tx, a, model.StatusNoShow, noShowReason, system, e.now())
			return err
		})
		switch {
		case err == nil:
			moved++
			e.metrics.Transition(string(model.StatusConfirmed), string(model.StatusNoShow))
		case apperr.HasCode(err, apperr.CodeVersionMismatch), apperr.KindOf(err) == apperr.KindIllegalTransition:
			e.logger.DebugContext(ctx, "no-show skipped", "appointment_id", a.ID, "err", err)
		default:
			return moved, err
		}
	}
	e.metrics.Swept(moved)
	return moved, nil
}
