package engine

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/board"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/outbox"
)

func transition(e *Engine, actor model.Actor, id string, to model.AppointmentStatus, reason string) (model.Appointment, error) {
	return e.Transition(context.Background(), TransitionRequest{
		BusinessID: "biz1", AppointmentID: id, Target: to, Reason: reason, Actor: actor,
	})
}

func approvers(ids ...string) model.ApprovalPayload {
	p := model.ApprovalPayload{}
	for _, id := range ids {
		p.Approvers = append(p.Approvers, model.Approver{ApproverID: id})
	}
	return p
}

func TestConfirmWaitsForApprovals(t *testing.T) {
	e, _ := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))
	approval := createAction(t, e, manager, appt.BoardID, model.ActionApproval, approvers("m1", "s1"))

	_, err := transition(e, manager, appt.ID, model.StatusConfirmed, "")
	if apperr.KindOf(err) != apperr.KindIllegalTransition {
		t.Fatalf("expected illegal transition with pending approval, got %v", err)
	}

	if _, err := apply(e, manager, approval, board.DecisionApprove); err != nil {
		t.Fatalf("approve m1: %v", err)
	}
	done, err := apply(e, staffOne, approval, board.DecisionApprove)
	if err != nil || done.Status != model.ActionCompleted {
		t.Fatalf("approve s1: %v status=%s", err, done.Status)
	}

	confirmed, err := transition(e, manager, appt.ID, model.StatusConfirmed, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed || confirmed.Version != 2 {
		t.Fatalf("unexpected appointment: %+v", confirmed)
	}
}

func TestApprovalRejectShortCircuits(t *testing.T) {
	e, _ := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))
	approval := createAction(t, e, manager, appt.BoardID, model.ActionApproval, approvers("m1", "s1"))

	if _, err := apply(e, manager, approval, board.DecisionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}
	rejected, err := apply(e, staffOne, approval, board.DecisionReject)
	if err != nil || rejected.Status != model.ActionRejected {
		t.Fatalf("reject: %v status=%s", err, rejected.Status)
	}
	again, err := apply(e, manager, approval, board.DecisionApprove)
	if err != nil || again.Status != model.ActionRejected || again.Version != rejected.Version {
		t.Fatalf("late approval should be a no-op: %v %+v", err, again)
	}

	system := model.SystemActor()
	if _, err := apply(e, system, approval, board.DecisionApprove); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("system must not decide approvals, got %v", err)
	}
}

func TestTransitionRules(t *testing.T) {
	e, _ := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))

	if _, err := transition(e, manager, appt.ID, model.StatusCompleted, ""); apperr.KindOf(err) != apperr.KindIllegalTransition {
		t.Fatalf("scheduled -> completed should be illegal, got %v", err)
	}
	if _, err := transition(e, manager, appt.ID, "archived", ""); !apperr.HasCode(err, apperr.CodeInvalidStatus) {
		t.Fatalf("expected invalid_status, got %v", err)
	}
	if _, err := transition(e, manager, appt.ID, model.StatusRescheduled, "  "); !apperr.HasCode(err, apperr.CodeReasonRequired) {
		t.Fatalf("expected reason_required, got %v", err)
	}
	if _, err := transition(e, customer, appt.ID, model.StatusCancelled, ""); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("customer transition should be forbidden, got %v", err)
	}
	other := model.Actor{ID: "s2", Role: model.RoleStaff, BusinessID: "biz1"}
	if _, err := transition(e, other, appt.ID, model.StatusCancelled, ""); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("other staff should be forbidden, got %v", err)
	}

	_, err := e.Transition(context.Background(), TransitionRequest{
		BusinessID: "biz1", AppointmentID: appt.ID, Target: model.StatusConfirmed,
		ExpectedVersion: 7, Actor: manager,
	})
	if !apperr.HasCode(err, apperr.CodeVersionMismatch) {
		t.Fatalf("expected version_mismatch, got %v", err)
	}

	cancelled, err := transition(e, staffOne, appt.ID, model.StatusCancelled, "customer called")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	replay, err := transition(e, staffOne, appt.ID, model.StatusCancelled, "customer called")
	if err != nil || replay.Version != cancelled.Version {
		t.Fatalf("replay should return stored appointment: %v %+v", err, replay)
	}
	_, err = e.Transition(context.Background(), TransitionRequest{
		BusinessID: "biz1", AppointmentID: appt.ID, Target: model.StatusCancelled,
		ExpectedStatus: model.StatusScheduled, Actor: manager,
	})
	if !apperr.HasCode(err, apperr.CodeVersionMismatch) {
		t.Fatalf("stale precondition should conflict, got %v", err)
	}
	if _, err := transition(e, manager, "missing", model.StatusCancelled, ""); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRescheduleFreesWindow(t *testing.T) {
	e, s := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))

	req := createAction(t, e, customer, appt.BoardID, model.ActionRescheduleRequest, model.ReschedulePayload{
		AppointmentID: appt.ID, Reason: "running late", CurrentDatetime: appt.StartTime,
	})
	done, err := apply(e, staffOne, req, board.DecisionApprove)
	if err != nil || done.Status != model.ActionCompleted {
		t.Fatalf("apply reschedule: %v %+v", err, done)
	}
	moved, _ := s.Appointment(appt.ID)
	if moved.Status != model.StatusRescheduled || moved.StatusReason != "running late" {
		t.Fatalf("appointment not rescheduled: %+v", moved)
	}
	book(t, e, "s1", monday(10, 0))
}

func TestStaleRescheduleRequest(t *testing.T) {
	e, s := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))

	raw := []byte(`{"appointment_id":"` + appt.ID + `","reason":"swap","current_datetime":"` +
		appt.StartTime.Add(time.Hour).Format(time.RFC3339) + `"}`)
	_, err := e.CreateAction(context.Background(), CreateActionRequest{
		BusinessID: "biz1", BoardID: appt.BoardID, Type: model.ActionRescheduleRequest, Payload: raw, Actor: customer,
	})
	if !apperr.HasCode(err, apperr.CodeStaleRequest) {
		t.Fatalf("expected stale_request, got %v", err)
	}

	req := createAction(t, e, customer, appt.BoardID, model.ActionRescheduleRequest, model.ReschedulePayload{
		AppointmentID: appt.ID, Reason: "swap", CurrentDatetime: appt.StartTime,
	})
	if _, err := transition(e, manager, appt.ID, model.StatusCancelled, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := apply(e, manager, req, board.DecisionApprove); !apperr.HasCode(err, apperr.CodeStaleRequest) {
		t.Fatalf("expected stale_request on apply, got %v", err)
	}
	stored, _ := s.Appointment(appt.ID)
	if stored.Status != model.StatusCancelled {
		t.Fatalf("stale apply changed appointment: %s", stored.Status)
	}
	for _, a := range s.Actions(appt.BoardID) {
		if a.ID == req.ID && a.Status != model.ActionPending {
			t.Fatalf("stale apply changed action: %s", a.Status)
		}
	}
}

func TestRejectionCancelsBoardAppointments(t *testing.T) {
	e, s := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))

	rej := createAction(t, e, customer, appt.BoardID, model.ActionRejection, model.RejectionPayload{Reason: "changed my mind"})
	if _, err := apply(e, customer, rej, board.DecisionReject); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("customers cannot apply, got %v", err)
	}
	out, err := apply(e, manager, rej, board.DecisionReject)
	if err != nil || out.Status != model.ActionRejected {
		t.Fatalf("apply rejection: %v %+v", err, out)
	}
	stored, _ := s.Appointment(appt.ID)
	if stored.Status != model.StatusCancelled || stored.StatusReason != "changed my mind" {
		t.Fatalf("appointment not cancelled: %+v", stored)
	}
	if _, err := apply(e, manager, rej, board.DecisionReject); !apperr.HasCode(err, apperr.CodeActionDecided) {
		t.Fatalf("expected action_decided, got %v", err)
	}

	var types []string
	for _, evt := range s.Events() {
		types = append(types, evt.EventType)
	}
	want := []string{outbox.AppointmentScheduled, outbox.ActionCreated, outbox.AppointmentCancelled, outbox.ActionRejected}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}

func TestAutomationCannotRescheduleThroughBoard(t *testing.T) {
	e, s := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))
	req := createAction(t, e, customer, appt.BoardID, model.ActionRescheduleRequest, model.ReschedulePayload{
		AppointmentID: appt.ID, Reason: "running late", CurrentDatetime: appt.StartTime,
	})
	events := len(s.Events())

	if _, err := apply(e, model.SystemActor(), req, board.DecisionApprove); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected forbidden, got %v", err)
	}
	stored, _ := s.Appointment(appt.ID)
	if stored.Status != model.StatusScheduled || stored.Version != appt.Version {
		t.Fatalf("denied approve changed appointment: %+v", stored)
	}
	assertPending(t, s.Actions(appt.BoardID), req.ID)
	if n := len(s.Events()); n != events {
		t.Fatalf("denied approve appended %d events", n-events)
	}
}

func TestRejectionCascadeIsAllOrNothing(t *testing.T) {
	e, s := newFixture(t)
	first := book(t, e, "s1", monday(10, 0))
	second, err := e.Allocate(context.Background(), AllocateRequest{
		BusinessID: "biz1", ServiceID: "svc30", StaffID: "s2", ServiceRequestID: first.ServiceRequestID,
		Start: monday(11, 0), End: monday(11, 30), Actor: customer,
	})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if second.Appointment.BoardID != first.BoardID {
		t.Fatalf("second appointment on board %s, want %s", second.Appointment.BoardID, first.BoardID)
	}
	rej := createAction(t, e, customer, first.BoardID, model.ActionRejection, model.RejectionPayload{Reason: "moving away"})
	events := len(s.Events())

	// s1 may cancel its own appointment but not the one assigned to s2.
	if _, err := apply(e, staffOne, rej, board.DecisionReject); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected forbidden, got %v", err)
	}
	for _, id := range []string{first.ID, second.Appointment.ID} {
		if a, _ := s.Appointment(id); a.Status != model.StatusScheduled {
			t.Fatalf("appointment %s is %s after a failed cascade", id, a.Status)
		}
	}
	assertPending(t, s.Actions(first.BoardID), rej.ID)
	if n := len(s.Events()); n != events {
		t.Fatalf("failed cascade appended %d events", n-events)
	}

	if _, err := apply(e, manager, rej, board.DecisionReject); err != nil {
		t.Fatalf("manager reject: %v", err)
	}
	for _, id := range []string{first.ID, second.Appointment.ID} {
		if a, _ := s.Appointment(id); a.Status != model.StatusCancelled {
			t.Fatalf("appointment %s is %s, want cancelled", id, a.Status)
		}
	}
}

func assertPending(t *testing.T, actions []model.Action, id string) {
	t.Helper()
	for _, a := range actions {
		if a.ID == id {
			if a.Status != model.ActionPending || a.Version != 1 {
				t.Fatalf("action %s changed: %s v%d", id, a.Status, a.Version)
			}
			return
		}
	}
	t.Fatalf("action %s not found", id)
}

func TestProgressAndCustomActions(t *testing.T) {
	e, _ := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))

	prog := createAction(t, e, staffOne, appt.BoardID, model.ActionProgress, model.ProgressPayload{Percent: 10})
	pct := 60
	updated, err := e.ApplyAction(context.Background(), ApplyActionRequest{
		BusinessID: "biz1", BoardID: appt.BoardID, ActionID: prog.ID,
		Decision: board.DecisionProgress, Percent: &pct, Note: "parts ordered", Actor: staffOne,
	})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p := updated.Payload.(model.ProgressPayload); p.Percent != 60 || updated.Status != model.ActionPending {
		t.Fatalf("unexpected progress: %+v %s", p, updated.Status)
	}
	done, err := apply(e, staffOne, updated, board.DecisionComplete)
	if err != nil || done.Status != model.ActionCompleted || done.Payload.(model.ProgressPayload).Percent != 100 {
		t.Fatalf("complete: %v %+v", err, done)
	}

	custom := createAction(t, e, manager, appt.BoardID, model.ActionCustom, model.CustomPayload{Label: "Deposit"})
	if _, err := apply(e, manager, custom, board.DecisionApprove); !apperr.HasCode(err, apperr.CodeInvalidInput) {
		t.Fatalf("approve on custom should be invalid, got %v", err)
	}
	if out, err := apply(e, model.SystemActor(), custom, board.DecisionReject); err != nil || out.Status != model.ActionRejected {
		t.Fatalf("system reject custom: %v %+v", err, out)
	}
	if _, err := apply(e, manager, custom, board.Decision("maybe")); !apperr.HasCode(err, apperr.CodeInvalidInput) {
		t.Fatalf("unknown decision should be invalid, got %v", err)
	}
}

func TestCustomerActionLimits(t *testing.T) {
	e, _ := newFixture(t)
	appt := book(t, e, "s1", monday(10, 0))

	raw := []byte(`{"percent":5}`)
	_, err := e.CreateAction(context.Background(), CreateActionRequest{
		BusinessID: "biz1", BoardID: appt.BoardID, Type: model.ActionProgress, Payload: raw, Actor: customer,
	})
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("customer progress should be forbidden, got %v", err)
	}
	stranger := model.Actor{ID: "c9", Role: model.RoleCustomer}
	_, err = e.CreateAction(context.Background(), CreateActionRequest{
		BusinessID: "biz1", BoardID: appt.BoardID, Type: model.ActionRejection, Payload: []byte(`{}`), Actor: stranger,
	})
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("stranger rejection should be forbidden, got %v", err)
	}
}

func TestCancelBoardAppointmentsIsIdempotent(t *testing.T) {
	e, s := newFixture(t)
	first := book(t, e, "s1", monday(10, 0))
	second, err := e.Allocate(context.Background(), AllocateRequest{
		BusinessID: "biz1", ServiceID: "svc30", StaffID: "s1", ServiceRequestID: first.ServiceRequestID,
		Start: monday(14, 0), End: monday(14, 30), Actor: customer,
	})
	if err != nil {
		t.Fatalf("second allocation: %v", err)
	}
	if second.Appointment.BoardID != first.BoardID {
		t.Fatal("second appointment should link the existing board")
	}

	req := BulkCancelRequest{BusinessID: "biz1", BoardID: first.BoardID, Status: model.StatusScheduled, Reason: "closed", Actor: manager}
	cancelled, err := e.CancelBoardAppointments(context.Background(), req)
	if err != nil || len(cancelled) != 2 {
		t.Fatalf("bulk cancel: %v, %d cancelled", err, len(cancelled))
	}
	again, err := e.CancelBoardAppointments(context.Background(), req)
	if err != nil || len(again) != 0 {
		t.Fatalf("repeat bulk cancel: %v, %d cancelled", err, len(again))
	}
	for _, a := range s.Appointments() {
		if a.Status != model.StatusCancelled {
			t.Fatalf("appointment %s still %s", a.ID, a.Status)
		}
	}
	req.Status = model.StatusCompleted
	if _, err := e.CancelBoardAppointments(context.Background(), req); !apperr.HasCode(err, apperr.CodeInvalidStatus) {
		t.Fatalf("expected invalid_status, got %v", err)
	}
}

func TestSweepNoShows(t *testing.T) {
	e, s := newFixture(t)
	s.PutAppointment(model.Appointment{
		ID: "late", BusinessID: "biz1", ServiceID: "svc30", CustomerID: "c1",
		StartTime: clock.Add(-2 * time.Hour), EndTime: clock.Add(-90 * time.Minute),
		Status: model.StatusConfirmed, Version: 3,
	})
	s.PutAppointment(model.Appointment{
		ID: "recent", BusinessID: "biz1", ServiceID: "svc30", CustomerID: "c1",
		StartTime: clock.Add(-40 * time.Minute), EndTime: clock.Add(-10 * time.Minute),
		Status: model.StatusConfirmed, Version: 1,
	})

	n, err := e.SweepNoShows(context.Background(), clock.Add(-time.Hour), 10)
	if err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}
	late, _ := s.Appointment("late")
	if late.Status != model.StatusNoShow || late.Version != 4 {
		t.Fatalf("late appointment: %+v", late)
	}
	recent, _ := s.Appointment("recent")
	if recent.Status != model.StatusConfirmed {
		t.Fatalf("recent appointment moved: %s", recent.Status)
	}
}

func TestReplaceRules(t *testing.T) {
	e, s := newFixture(t)
	rules := []model.AvailabilityRule{{Recurring: true, Weekday: time.Saturday, StartMinute: 600, EndMinute: 720, Active: true}}

	if _, err := e.ReplaceRules(context.Background(), ReplaceRulesRequest{BusinessID: "biz1", Rules: rules, Actor: staffOne}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("staff replacing general rules should be forbidden, got %v", err)
	}
	if _, err := e.ReplaceRules(context.Background(), ReplaceRulesRequest{BusinessID: "biz1", StaffID: "s1", Rules: rules, Actor: staffOne}); err != nil {
		t.Fatalf("staff own rules: %v", err)
	}
	bad := []model.AvailabilityRule{{Recurring: true, Weekday: time.Monday, StartMinute: 1380, EndMinute: 1500}}
	if _, err := e.ReplaceRules(context.Background(), ReplaceRulesRequest{BusinessID: "biz1", Rules: bad, Actor: manager}); !apperr.HasCode(err, apperr.CodeInvalidInput) {
		t.Fatalf("rule past midnight should be invalid, got %v", err)
	}
	if _, err := e.ReplaceRules(context.Background(), ReplaceRulesRequest{BusinessID: "biz1", Actor: manager}); err != nil {
		t.Fatalf("clear general rules: %v", err)
	}
	got := s.Rules("biz1")
	if len(got) != 1 || got[0].StaffID != "s1" || got[0].Weekday != time.Saturday {
		t.Fatalf("unexpected rules: %+v", got)
	}
}
