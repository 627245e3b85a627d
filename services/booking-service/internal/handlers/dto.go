package handlers

import (
	"iter"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

type appointmentResponse struct {
	ID               string `json:"id"`
	BusinessID       string `json:"business_id"`
	ServiceID        string `json:"service_id"`
	StaffID          string `json:"staff_id,omitempty"`
	CustomerID       string `json:"customer_id"`
	ServiceRequestID string `json:"service_request_id,omitempty"`
	BoardID          string `json:"board_id,omitempty"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Status           string `json:"status"`
	StatusReason     string `json:"status_reason,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Version          int64  `json:"version"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func toAppointment(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:               a.ID,
		BusinessID:       a.BusinessID,
		ServiceID:        a.ServiceID,
		StaffID:          a.StaffID,
		CustomerID:       a.CustomerID,
		ServiceRequestID: a.ServiceRequestID,
		BoardID:          a.BoardID,
		StartTime:        formatTime(a.StartTime),
		EndTime:          formatTime(a.EndTime),
		Status:           string(a.Status),
		StatusReason:     a.StatusReason,
		Notes:            a.Notes,
		Version:          a.Version,
		CreatedAt:        formatTime(a.CreatedAt),
		UpdatedAt:        formatTime(a.UpdatedAt),
	}
}

type actionResponse struct {
	ID        string        `json:"id"`
	BoardID   string        `json:"board_id"`
	Seq       int           `json:"seq"`
	Type      string        `json:"type"`
	Status    string        `json:"status"`
	Payload   model.Payload `json:"payload"`
	CreatedBy string        `json:"created_by"`
	Version   int64         `json:"version"`
	CreatedAt string        `json:"created_at,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
}

func toAction(a model.Action) actionResponse {
	return actionResponse{
		ID:        a.ID,
		BoardID:   a.BoardID,
		Seq:       a.Seq,
		Type:      string(a.Type),
		Status:    string(a.Status),
		Payload:   a.Payload,
		CreatedBy: a.CreatedBy,
		Version:   a.Version,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

type boardResponse struct {
	ID               string           `json:"id"`
	Ref              string           `json:"ref"`
	ServiceRequestID string           `json:"service_request_id"`
	CustomerID       string           `json:"customer_id"`
	Actions          []actionResponse `json:"actions"`
}

func toBoard(b model.Board) boardResponse {
	actions := make([]actionResponse, 0, len(b.Actions))
	for _, a := range b.Actions {
		actions = append(actions, toAction(a))
	}
	return boardResponse{
		ID:               b.ID,
		Ref:              b.Ref,
		ServiceRequestID: b.ServiceRequestID,
		CustomerID:       b.CustomerID,
		Actions:          actions,
	}
}

type intervalResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func toIntervals(seq iter.Seq[availability.Interval]) []intervalResponse {
	out := []intervalResponse{}
	for iv := range seq {
		out = append(out, intervalResponse{Start: formatTime(iv.Start), End: formatTime(iv.End)})
	}
	return out
}

type ruleRequest struct {
	Recurring   bool   `json:"recurring"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	StartsAt    string `json:"starts_at,omitempty"`
	EndsAt      string `json:"ends_at,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

type ruleResponse struct {
	ID          string `json:"id"`
	StaffID     string `json:"staff_id,omitempty"`
	Recurring   bool   `json:"recurring"`
	Weekday     int    `json:"weekday,omitempty"`
	StartMinute int    `json:"start_minute,omitempty"`
	EndMinute   int    `json:"end_minute,omitempty"`
	StartsAt    string `json:"starts_at,omitempty"`
	EndsAt      string `json:"ends_at,omitempty"`
	Active      bool   `json:"active"`
}

func toRule(r model.AvailabilityRule) ruleResponse {
	out := ruleResponse{ID: r.ID, StaffID: r.StaffID, Recurring: r.Recurring, Active: r.Active}
	if r.Recurring {
		out.Weekday = int(r.Weekday)
		out.StartMinute = r.StartMinute
		out.EndMinute = r.EndMinute
	} else {
		out.StartsAt = formatTime(r.StartsAt)
		out.EndsAt = formatTime(r.EndsAt)
	}
	return out
}
