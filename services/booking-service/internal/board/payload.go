// Package board holds the typed action payloads of a service board and the
// rules for deciding them.
package board

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

// DecodePayload parses raw into the payload type that belongs to t and
// validates it. Approval payloads always start with every approver pending.
func DecodePayload(t model.ActionType, raw json.RawMessage) (model.Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	switch t {
	case model.ActionApproval:
		var p model.ApprovalPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		if err := validateApproval(&p); err != nil {
			return nil, err
		}
		return p, nil
	case model.ActionProgress:
		var p model.ProgressPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.Percent < 0 || p.Percent > 100 {
			return nil, apperr.Validation(apperr.CodeInvalidInput, "percent must be between 0 and 100")
		}
		return p, nil
	case model.ActionRescheduleRequest:
		var p model.ReschedulePayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.Reason = strings.TrimSpace(p.Reason)
		switch {
		case p.AppointmentID == "":
			return nil, apperr.Validation(apperr.CodeInvalidInput, "appointment_id is required")
		case p.Reason == "":
			return nil, apperr.Validation(apperr.CodeReasonRequired, "reason is required")
		case p.CurrentDatetime.IsZero():
			return nil, apperr.Validation(apperr.CodeInvalidInput, "current_datetime is required")
		}
		return p, nil
	case model.ActionRejection:
		var p model.RejectionPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.Reason = strings.TrimSpace(p.Reason)
		return p, nil
	case model.ActionCustom:
		var p model.CustomPayload
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.Label = strings.TrimSpace(p.Label)
		if p.Label == "" {
			return nil, apperr.Validation(apperr.CodeInvalidInput, "label is required")
		}
		return p, nil
	}
	return nil, apperr.Validation(apperr.CodeInvalidInput, "unknown action type "+string(t))
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation(apperr.CodeInvalidInput, "invalid payload: "+err.Error())
	}
	return nil
}

func validateApproval(p *model.ApprovalPayload) error {
	if len(p.Approvers) == 0 {
		return apperr.Validation(apperr.CodeInvalidInput, "at least one approver is required")
	}
	seen := make(map[string]struct{}, len(p.Approvers))
	for i := range p.Approvers {
		id := strings.TrimSpace(p.Approvers[i].ApproverID)
		if id == "" {
			return apperr.Validation(apperr.CodeInvalidInput, "approver_id is required")
		}
		if _, dup := seen[id]; dup {
			return apperr.Validation(apperr.CodeInvalidInput, "duplicate approver "+id)
		}
		seen[id] = struct{}{}
		p.Approvers[i] = model.Approver{ApproverID: id, Status: model.ApproverPending}
	}
	return nil
}

// EncodePayload is the storage form of a payload.
func EncodePayload(p model.Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return b, nil
}
