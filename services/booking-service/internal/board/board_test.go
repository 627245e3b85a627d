package board

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

func TestDecodeApprovalForcesPending(t *testing.T) {
	raw := json.RawMessage(`{"approvers":[{"approver_id":" a1 ","status":"approved"},{"approver_id":"a2"}]}`)
	p, err := DecodePayload(model.ActionApproval, raw)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	ap := p.(model.ApprovalPayload)
	if len(ap.Approvers) != 2 || ap.Approvers[0].ApproverID != "a1" {
		t.Fatalf("unexpected approvers: %+v", ap.Approvers)
	}
	for _, a := range ap.Approvers {
		if a.Status != model.ApproverPending {
			t.Fatalf("approver %s should start pending", a.ApproverID)
		}
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		typ  model.ActionType
		raw  string
		code string
	}{
		{"no approvers", model.ActionApproval, `{"approvers":[]}`, apperr.CodeInvalidInput},
		{"duplicate approver", model.ActionApproval, `{"approvers":[{"approver_id":"a"},{"approver_id":"a"}]}`, apperr.CodeInvalidInput},
		{"percent range", model.ActionProgress, `{"percent":101}`, apperr.CodeInvalidInput},
		{"unknown field", model.ActionProgress, `{"percent":10,"extra":1}`, apperr.CodeInvalidInput},
		{"reschedule without reason", model.ActionRescheduleRequest, `{"appointment_id":"x","current_datetime":"2026-03-02T09:00:00Z"}`, apperr.CodeReasonRequired},
		{"reschedule without time", model.ActionRescheduleRequest, `{"appointment_id":"x","reason":"sick"}`, apperr.CodeInvalidInput},
		{"custom without label", model.ActionCustom, `{"fields":{"a":"b"}}`, apperr.CodeInvalidInput},
		{"unknown type", model.ActionType("memo"), `{}`, apperr.CodeInvalidInput},
	}
	for _, tc := range cases {
		p, err := DecodePayload(tc.typ, json.RawMessage(tc.raw))
		if !apperr.HasCode(err, tc.code) {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.code, err)
		}
		if p != nil {
			t.Fatalf("%s: invalid payload returned %+v", tc.name, p)
		}
	}
}

func TestEncodeDecodeReschedule(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	in := model.ReschedulePayload{AppointmentID: "ap1", Reason: "conflict", CurrentDatetime: start}
	raw, err := EncodePayload(in)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	out, err := DecodePayload(model.ActionRescheduleRequest, raw)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	got := out.(model.ReschedulePayload)
	if got.AppointmentID != "ap1" || !got.CurrentDatetime.Equal(start) {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func approvalAction(ids ...string) model.Action {
	approvers := make([]model.Approver, 0, len(ids))
	for _, id := range ids {
		approvers = append(approvers, model.Approver{ApproverID: id, Status: model.ApproverPending})
	}
	return model.Action{ID: "act1", Type: model.ActionApproval, Status: model.ActionPending, Payload: model.ApprovalPayload{Approvers: approvers}}
}

func TestDecideApprovalCompletesWhenAllApprove(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := approvalAction("a1", "a2")

	a1, changed, err := DecideApproval(a, "a1", DecisionApprove, now)
	if err != nil || !changed {
		t.Fatalf("first approval: changed=%v err=%v", changed, err)
	}
	if a1.Status != model.ActionPending {
		t.Fatalf("expected pending after one of two, got %s", a1.Status)
	}
	if a.Payload.(model.ApprovalPayload).Approvers[0].Status != model.ApproverPending {
		t.Fatal("input action was mutated")
	}

	again, changed, err := DecideApproval(a1, "a1", DecisionReject, now)
	if err != nil || changed || again.Status != model.ActionPending {
		t.Fatalf("repeat decision should be a no-op: changed=%v err=%v", changed, err)
	}

	a2, changed, err := DecideApproval(a1, "a2", DecisionApprove, now)
	if err != nil || !changed || a2.Status != model.ActionCompleted {
		t.Fatalf("expected completed, got %s changed=%v err=%v", a2.Status, changed, err)
	}
	if a2.Payload.(model.ApprovalPayload).Approvers[1].DecidedAt == nil {
		t.Fatal("decided_at not recorded")
	}
}

func TestDecideApprovalRejectAndOutsider(t *testing.T) {
	now := time.Now()
	a := approvalAction("a1", "a2")

	if _, _, err := DecideApproval(a, "zz", DecisionApprove, now); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
	rejected, changed, err := DecideApproval(a, "a2", DecisionReject, now)
	if err != nil || !changed || rejected.Status != model.ActionRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	after, changed, err := DecideApproval(rejected, "a1", DecisionApprove, now)
	if err != nil || changed || after.Status != model.ActionRejected {
		t.Fatal("decided action must not change")
	}
}

func TestApprovalsSettled(t *testing.T) {
	done := approvalAction("a1")
	done.Status = model.ActionCompleted
	progress := model.Action{Type: model.ActionProgress, Status: model.ActionPending}
	if !ApprovalsSettled(nil) || !ApprovalsSettled([]model.Action{done, progress}) {
		t.Fatal("expected settled")
	}
	if ApprovalsSettled([]model.Action{done, approvalAction("a2")}) {
		t.Fatal("pending approval should block")
	}
}
