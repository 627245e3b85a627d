package board

import (
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionComplete Decision = "complete"
	DecisionProgress Decision = "progress"
)

func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(s); d {
	case DecisionApprove, DecisionReject, DecisionComplete, DecisionProgress:
		return d, true
	}
	return "", false
}

// DecideApproval records one approver's decision on an approval action and
// returns the updated action. changed is false when the call had no effect,
// either because the action is already decided or because this approver
// already voted. A single rejection rejects the action; it completes once
// every approver has approved.
func DecideApproval(a model.Action, approverID string, d Decision, now time.Time) (model.Action, bool, error) {
	if d != DecisionApprove && d != DecisionReject {
		return a, false, apperr.Validation(apperr.CodeInvalidInput, "approval actions take approve or reject")
	}
	p, ok := a.Payload.(model.ApprovalPayload)
	if !ok {
		return a, false, apperr.Validation(apperr.CodeInvalidInput, "action is not an approval")
	}
	if a.Status != model.ActionPending {
		return a, false, nil
	}

	approvers := make([]model.Approver, len(p.Approvers))
	copy(approvers, p.Approvers)
	idx := -1
	for i, ap := range approvers {
		if ap.ApproverID == approverID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return a, false, apperr.Forbidden("caller is not an approver on this action")
	}
	if approvers[idx].Status != model.ApproverPending {
		return a, false, nil
	}

	at := now.UTC()
	approvers[idx].DecidedAt = &at
	approvers[idx].Status = model.ApproverApproved
	if d == DecisionReject {
		approvers[idx].Status = model.ApproverRejected
	}

	out := a
	out.Payload = model.ApprovalPayload{Approvers: approvers}
	out.Status = approvalStatus(approvers)
	out.UpdatedAt = at
	return out, true, nil
}

func approvalStatus(approvers []model.Approver) model.ActionStatus {
	approved := 0
	for _, ap := range approvers {
		switch ap.Status {
		case model.ApproverRejected:
			return model.ActionRejected
		case model.ApproverApproved:
			approved++
		}
	}
	if approved == len(approvers) {
		return model.ActionCompleted
	}
	return model.ActionPending
}

// ApprovalsSettled reports whether every approval action on the board is
// completed. Boards without approval actions are settled.
func ApprovalsSettled(actions []model.Action) bool {
	for _, a := range actions {
		if a.Type == model.ActionApproval && a.Status != model.ActionCompleted {
			return false
		}
	}
	return true
}
