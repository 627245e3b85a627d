package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

type allocateRequest struct {
	ServiceID        string   `json:"service_id"`
	StaffID          string   `json:"staff_id"`
	CustomerID       string   `json:"customer_id"`
	ServiceRequestID string   `json:"service_request_id"`
	ItemIDs          []string `json:"item_ids"`
	Urgent           bool     `json:"urgent"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	Notes            string   `json:"notes"`
}

type allocateResponse struct {
	Appointment appointmentResponse `json:"appointment"`
	Board       boardResponse       `json:"board"`
}

// Allocate handles POST /appointments. A replayed Idempotency-Key answers
// 200 with the original booking instead of 201.
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	actor, vars, ok := h.request(w, r)
	if !ok {
		return
	}
	var req allocateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := parseTime("start_time", req.StartTime)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	end, err := parseTime("end_time", req.EndTime)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.booking.Allocate(r.Context(), engine.AllocateRequest{
		BusinessID:       vars["businessID"],
		ServiceID:        req.ServiceID,
		StaffID:          req.StaffID,
		CustomerID:       req.CustomerID,
		ServiceRequestID: req.ServiceRequestID,
		ItemIDs:          req.ItemIDs,
		Urgent:           req.Urgent,
		Start:            start,
		End:              end,
		Notes:            req.Notes,
		IdempotencyKey:   strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		Actor:            actor,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, allocateResponse{
		Appointment: toAppointment(res.Appointment),
		Board:       toBoard(res.Board),
	})
}

type transitionRequest struct {
	Status          string `json:"status"`
	Reason          string `json:"reason"`
	ExpectedStatus  string `json:"expected_status"`
	ExpectedVersion int64  `json:"expected_version"`
}

// Transition handles PATCH /appointments/{appointmentID}.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, vars, ok := h.request(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var expected model.AppointmentStatus
	if s := strings.TrimSpace(req.ExpectedStatus); s != "" {
		st, ok := model.ParseAppointmentStatus(s)
		if !ok {
			writeError(w, r, h.logger, apperr.Validation(apperr.CodeInvalidStatus, "unknown expected_status "+s))
			return
		}
		expected = st
	}

	a, err := h.booking.Transition(r.Context(), engine.TransitionRequest{
		BusinessID:      vars["businessID"],
		AppointmentID:   vars["appointmentID"],
		Target:          model.AppointmentStatus(strings.TrimSpace(req.Status)),
		Reason:          req.Reason,
		ExpectedStatus:  expected,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actor,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointment(a))
}
