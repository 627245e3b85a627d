package model

import "time"

type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusNoShow      AppointmentStatus = "no_show"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(s); st {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusRescheduled, StatusCompleted, StatusNoShow:
		return st, true
	}
	return "", false
}

// Blocking statuses hold their window against other bookings.
func (s AppointmentStatus) Blocking() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// BlockingStatuses lists the statuses that hold a window.
var BlockingStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed}

// Appointment is a commitment between a business and a customer. An empty
// StaffID means nobody is assigned and the business is the resource.
type Appointment struct {
	ID               string
	BusinessID       string
	ServiceID        string
	StaffID          string
	CustomerID       string
	ServiceRequestID string
	BoardID          string
	StartTime        time.Time
	EndTime          time.Time
	Status           AppointmentStatus
	Notes            string
	StatusReason     string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
