package authz

import (
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

type ResourceKind string

const (
	ResourceAppointment      ResourceKind = "appointment"
	ResourceBoard            ResourceKind = "service_board"
	ResourceAction           ResourceKind = "service_board_action"
	ResourceAvailabilityRule ResourceKind = "availability_rule"
)

type Operation string

const (
	OpRead         Operation = "read"
	OpAllocate     Operation = "allocate"
	OpTransition   Operation = "transition"
	OpCreateAction Operation = "create_action"
	OpApplyAction  Operation = "apply_action"
	OpManage       Operation = "manage"
)

// Resource describes what is being touched. Only the fields relevant to
// the operation need to be set.
type Resource struct {
	Kind       ResourceKind
	BusinessID string
	// OwnerID is the customer the appointment or board belongs to.
	OwnerID string
	// StaffID is the assigned staff member, or the staff a rule belongs to.
	StaffID string
	// ActionType is set for action creation and application.
	ActionType model.ActionType
	// Target is the requested status for transitions.
	Target model.AppointmentStatus
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Authorize maps (actor, resource, operation) to a decision.
func Authorize(actor model.Actor, res Resource, op Operation) Decision {
	if actor.ID == "" {
		return deny("caller is not identified")
	}
	switch actor.Role {
	case model.RoleManager:
		if actor.BusinessID != res.BusinessID {
			return deny("actor does not manage this business")
		}
		return allow()
	case model.RoleStaff:
		return authorizeStaff(actor, res, op)
	case model.RoleCustomer:
		return authorizeCustomer(actor, res, op)
	case model.RoleSystem:
		return authorizeSystem(res, op)
	}
	return deny("unknown role")
}

func authorizeStaff(actor model.Actor, res Resource, op Operation) Decision {
	if actor.BusinessID != res.BusinessID {
		return deny("actor is not a member of this business")
	}
	switch {
	case op == OpTransition && res.Kind == ResourceAppointment && res.StaffID != "" && res.StaffID != actor.ID:
		return deny("appointment is assigned to another staff member")
	case op == OpManage && res.Kind == ResourceAvailabilityRule && res.StaffID != actor.ID:
		return deny("staff may only manage their own availability")
	}
	return allow()
}

func authorizeCustomer(actor model.Actor, res Resource, op Operation) Decision {
	if res.OwnerID != actor.ID {
		return deny("resource belongs to another customer")
	}
	switch op {
	case OpRead:
		if res.Kind == ResourceAppointment || res.Kind == ResourceBoard || res.Kind == ResourceAction {
			return allow()
		}
	case OpAllocate:
		if res.Kind == ResourceAppointment {
			return allow()
		}
	case OpCreateAction:
		if res.ActionType == model.ActionRescheduleRequest || res.ActionType == model.ActionRejection {
			return allow()
		}
		return deny("customers may only request a reschedule or a cancellation")
	}
	return deny("customers may not " + string(op) + " this resource")
}

func authorizeSystem(res Resource, op Operation) Decision {
	switch op {
	case OpRead:
		return allow()
	case OpTransition:
		switch res.Target {
		case model.StatusNoShow, model.StatusCompleted, model.StatusCancelled:
			return allow()
		}
		return deny("automation may only close out appointments")
	case OpApplyAction:
		if res.ActionType == model.ActionApproval {
			return deny("automation may not decide approvals")
		}
		return allow()
	}
	return deny("automation may not " + string(op))
}

// Check is Authorize as an error.
func Check(actor model.Actor, res Resource, op Operation) error {
	if d := Authorize(actor, res, op); !d.Allowed {
		return apperr.Forbidden(d.Reason)
	}
	return nil
}
