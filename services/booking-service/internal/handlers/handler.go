// Package handlers is the HTTP surface of the booking service.
package handlers

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

// Booking is the engine surface the handlers call. *engine.Engine
// implements it.
type Booking interface {
	Availability(ctx context.Context, q engine.AvailabilityQuery) (iter.Seq[availability.Interval], error)
	Slots(ctx context.Context, q engine.AvailabilityQuery, step time.Duration) (iter.Seq[availability.Interval], error)
	Allocate(ctx context.Context, req engine.AllocateRequest) (engine.Allocation, error)
	Transition(ctx context.Context, req engine.TransitionRequest) (model.Appointment, error)
	CreateAction(ctx context.Context, req engine.CreateActionRequest) (model.Action, error)
	ApplyAction(ctx context.Context, req engine.ApplyActionRequest) (model.Action, error)
	CancelBoardAppointments(ctx context.Context, req engine.BulkCancelRequest) ([]model.Appointment, error)
	ReplaceRules(ctx context.Context, req engine.ReplaceRulesRequest) ([]model.AvailabilityRule, error)
}

type Handler struct {
	booking Booking
	logger  *slog.Logger
}

func New(booking Booking, logger *slog.Logger) *Handler {
	return &Handler{booking: booking, logger: logger}
}

// Routes mounts the API under r. Every route requires an authenticated
// actor; extra middleware (rate limiting) runs after authentication.
func (h *Handler) Routes(r *mux.Router, verifier TokenVerifier, mw ...mux.MiddlewareFunc) {
	api := r.PathPrefix("/api/v1/businesses/{businessID}").Subrouter()
	api.Use(Authenticate(verifier))
	api.Use(mw...)

	api.HandleFunc("/availability", h.Availability).Methods(http.MethodGet)
	api.HandleFunc("/availability-rules", h.ReplaceRules).Methods(http.MethodPut)
	api.HandleFunc("/appointments", h.Allocate).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{appointmentID}", h.Transition).Methods(http.MethodPatch)
	api.HandleFunc("/boards/{boardID}/actions", h.CreateAction).Methods(http.MethodPost)
	api.HandleFunc("/boards/{boardID}/actions/{actionID}/decisions", h.ApplyAction).Methods(http.MethodPost)
	api.HandleFunc("/boards/{boardID}/appointments/cancel", h.CancelBoard).Methods(http.MethodPost)
}

// request returns the actor and path variables of r. The router only
// dispatches authenticated requests, so a missing actor is a wiring bug.
func (h *Handler) request(w http.ResponseWriter, r *http.Request) (model.Actor, map[string]string, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusUnauthorized, "unauthenticated", "bearer token required")
		return model.Actor{}, nil, false
	}
	return actor, mux.Vars(r), true
}
