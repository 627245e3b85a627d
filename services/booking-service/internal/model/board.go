package model

import "time"

type ServiceRequest struct {
	ID         string
	BusinessID string
	CustomerID string
	ServiceID  string
	Urgent     bool
	ItemIDs    []string
	CreatedAt  time.Time
}

type Board struct {
	ID               string
	BusinessID       string
	ServiceRequestID string
	Ref              string
	CustomerID       string
	Actions          []Action
	CreatedAt        time.Time
}

type ActionType string

const (
	ActionApproval          ActionType = "approval"
	ActionProgress          ActionType = "progress"
	ActionRescheduleRequest ActionType = "reschedule_request"
	ActionRejection         ActionType = "rejection"
	ActionCustom            ActionType = "custom"
)

func ParseActionType(s string) (ActionType, bool) {
	switch t := ActionType(s); t {
	case ActionApproval, ActionProgress, ActionRescheduleRequest, ActionRejection, ActionCustom:
		return t, true
	}
	return "", false
}

type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionCompleted ActionStatus = "completed"
	ActionRejected  ActionStatus = "rejected"
)

// Action is one typed entry of a board. Seq orders actions within a board.
type Action struct {
	ID        string
	BoardID   string
	Seq       int
	Type      ActionType
	Status    ActionStatus
	Payload   Payload
	CreatedBy string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payload is the per-type body of an action. Each action type has exactly
// one payload type.
type Payload interface {
	ActionType() ActionType
}

type ApproverStatus string

const (
	ApproverPending  ApproverStatus = "pending"
	ApproverApproved ApproverStatus = "approved"
	ApproverRejected ApproverStatus = "rejected"
)

type Approver struct {
	ApproverID string         `json:"approver_id"`
	Status     ApproverStatus `json:"status"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
}

type ApprovalPayload struct {
	Approvers []Approver `json:"approvers"`
}

type ProgressPayload struct {
	Percent int    `json:"percent"`
	Note    string `json:"note,omitempty"`
}

type ReschedulePayload struct {
	AppointmentID   string     `json:"appointment_id"`
	Reason          string     `json:"reason"`
	CurrentDatetime time.Time  `json:"current_datetime"`
	RequestedStart  *time.Time `json:"requested_start,omitempty"`
}

type RejectionPayload struct {
	Reason string `json:"reason"`
}

type CustomPayload struct {
	Label  string            `json:"label"`
	Status string            `json:"status,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (ApprovalPayload) ActionType() ActionType   { return ActionApproval }
func (ProgressPayload) ActionType() ActionType   { return ActionProgress }
func (ReschedulePayload) ActionType() ActionType { return ActionRescheduleRequest }
func (RejectionPayload) ActionType() ActionType  { return ActionRejection }
func (CustomPayload) ActionType() ActionType     { return ActionCustom }
