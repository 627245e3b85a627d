package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/board"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

type createActionRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	actor, vars, ok := h.request(w, r)
	if !ok {
		return
	}
	var req createActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := h.booking.CreateAction(r.Context(), engine.CreateActionRequest{
		BusinessID: vars["businessID"],
		BoardID:    vars["boardID"],
		Type:       model.ActionType(strings.TrimSpace(req.Type)),
		Payload:    req.Payload,
		Actor:      actor,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAction(a))
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Percent  *int   `json:"percent"`
	Note     string `json:"note"`
	Status   string `json:"status"`
}

func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	actor, vars, ok := h.request(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	decision, ok := board.ParseDecision(strings.TrimSpace(req.Decision))
	if !ok {
		writeError(w, r, h.logger, apperr.Validation(apperr.CodeInvalidInput, "decision must be approve, reject, complete or progress"))
		return
	}
	a, err := h.booking.ApplyAction(r.Context(), engine.ApplyActionRequest{
		BusinessID: vars["businessID"],
		BoardID:    vars["boardID"],
		ActionID:   vars["actionID"],
		Decision:   decision,
		Percent:    req.Percent,
		Note:       req.Note,
		Status:     req.Status,
		Actor:      actor,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAction(a))
}

type cancelBoardRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type cancelBoardResponse struct {
	Cancelled []appointmentResponse `json:"cancelled"`
}

// CancelBoard cancels every appointment of the board in the given status.
func (h *Handler) CancelBoard(w http.ResponseWriter, r *http.Request) {
	actor, vars, ok := h.request(w, r)
	if !ok {
		return
	}
	var req cancelBoardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	moved, err := h.booking.CancelBoardAppointments(r.Context(), engine.BulkCancelRequest{
		BusinessID: vars["businessID"],
		BoardID:    vars["boardID"],
		Status:     model.AppointmentStatus(strings.TrimSpace(req.Status)),
		Reason:     req.Reason,
		Actor:      actor,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := cancelBoardResponse{Cancelled: make([]appointmentResponse, 0, len(moved))}
	for _, a := range moved {
		out.Cancelled = append(out.Cancelled, toAppointment(a))
	}
	writeJSON(w, http.StatusOK, out)
}
