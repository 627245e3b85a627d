package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

type appointmentEvent struct {
	AppointmentID  string    `json:"appointment_id"`
	BusinessID     string    `json:"business_id"`
	ServiceID      string    `json:"service_id"`
	StaffID        string    `json:"staff_id,omitempty"`
	CustomerID     string    `json:"customer_id"`
	BoardID        string    `json:"board_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Version        int64     `json:"version"`
	ActorID        string    `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type actionEvent struct {
	ActionID   string    `json:"action_id"`
	BoardID    string    `json:"board_id"`
	BusinessID string    `json:"business_id"`
	Seq        int       `json:"seq"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

var appointmentEventTypes = map[model.AppointmentStatus]string{
	model.StatusScheduled:   outbox.AppointmentScheduled,
	model.StatusConfirmed:   outbox.AppointmentConfirmed,
	model.StatusCancelled:   outbox.AppointmentCancelled,
	model.StatusRescheduled: outbox.AppointmentRescheduled,
	model.StatusCompleted:   outbox.AppointmentCompleted,
	model.StatusNoShow:      outbox.AppointmentNoShow,
}

func appendAppointmentEvent(ctx context.Context, tx store.Tx, a model.Appointment, previous model.AppointmentStatus, actor model.Actor, at time.Time) error {
	payload, err := json.Marshal(appointmentEvent{
		AppointmentID:  a.ID,
		BusinessID:     a.BusinessID,
		ServiceID:      a.ServiceID,
		StaffID:        a.StaffID,
		CustomerID:     a.CustomerID,
		BoardID:        a.BoardID,
		Status:         string(a.Status),
		PreviousStatus: string(previous),
		Reason:         a.StatusReason,
		StartTime:      a.StartTime.UTC(),
		EndTime:        a.EndTime.UTC(),
		Version:        a.Version,
		ActorID:        actor.ID,
		OccurredAt:     at.UTC(),
	})
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     appointmentEventTypes[a.Status],
		Payload:       payload,
	})
}

func appendActionEvent(ctx context.Context, tx store.Tx, eventType, businessID string, a model.Action, actor model.Actor, at time.Time) error {
	payload, err := json.Marshal(actionEvent{
		ActionID:   a.ID,
		BoardID:    a.BoardID,
		BusinessID: businessID,
		Seq:        a.Seq,
		Type:       string(a.Type),
		Status:     string(a.Status),
		ActorID:    actor.ID,
		OccurredAt: at.UTC(),
	})
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, outbox.Event{
		AggregateType: "service_board",
		AggregateID:   a.BoardID,
		EventType:     eventType,
		Payload:       payload,
	})
}
