package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

type availabilityResponse struct {
	Windows []intervalResponse `json:"windows"`
	Slots   []intervalResponse `json:"slots,omitempty"`
}

// Availability handles GET /availability. With service_id it also lists
// bookable slot starts every step_minutes.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	_, vars, ok := h.request(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := parseTime("from", q.Get("from"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, err := parseTime("to", q.Get("to"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	query := engine.AvailabilityQuery{
		BusinessID: vars["businessID"],
		StaffID:    strings.TrimSpace(q.Get("staff_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		ItemIDs:    splitList(q.Get("item_ids")),
		From:       from,
		To:         to,
	}

	windows, err := h.booking.Availability(r.Context(), query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := availabilityResponse{Windows: toIntervals(windows)}

	if query.ServiceID != "" {
		var step time.Duration
		if raw := strings.TrimSpace(q.Get("step_minutes")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, r, h.logger, apperr.Validation(apperr.CodeInvalidInput, "step_minutes must be a positive integer"))
				return
			}
			step = time.Duration(n) * time.Minute
		}
		slots, err := h.booking.Slots(r.Context(), query, step)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		resp.Slots = toIntervals(slots)
	}
	writeJSON(w, http.StatusOK, resp)
}

type replaceRulesRequest struct {
	StaffID string        `json:"staff_id"`
	Rules   []ruleRequest `json:"rules"`
}

type rulesResponse struct {
	Rules []ruleResponse `json:"rules"`
}

// ReplaceRules handles PUT /availability-rules.
func (h *Handler) ReplaceRules(w http.ResponseWriter, r *http.Request) {
	actor, vars, ok := h.request(w, r)
	if !ok {
		return
	}
	var req replaceRulesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rules := make([]model.AvailabilityRule, 0, len(req.Rules))
	for i, in := range req.Rules {
		rule := model.AvailabilityRule{
			Recurring:   in.Recurring,
			Weekday:     time.Weekday(in.Weekday),
			StartMinute: in.StartMinute,
			EndMinute:   in.EndMinute,
			Active:      in.Active == nil || *in.Active,
		}
		if !in.Recurring {
			var err error
			if rule.StartsAt, err = parseTime("rules["+strconv.Itoa(i)+"].starts_at", in.StartsAt); err != nil {
				writeError(w, r, h.logger, err)
				return
			}
			if rule.EndsAt, err = parseTime("rules["+strconv.Itoa(i)+"].ends_at", in.EndsAt); err != nil {
				writeError(w, r, h.logger, err)
				return
			}
		}
		rules = append(rules, rule)
	}

	saved, err := h.booking.ReplaceRules(r.Context(), engine.ReplaceRulesRequest{
		BusinessID: vars["businessID"],
		StaffID:    strings.TrimSpace(req.StaffID),
		Rules:      rules,
		Actor:      actor,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := rulesResponse{Rules: make([]ruleResponse, 0, len(saved))}
	for _, rule := range saved {
		out.Rules = append(out.Rules, toRule(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
