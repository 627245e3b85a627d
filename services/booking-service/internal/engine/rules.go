package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/authz"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

type ReplaceRulesRequest struct {
	BusinessID string
	// StaffID selects the staff member's own rules; empty replaces the
	// general rules of the business.
	StaffID string
	Rules   []model.AvailabilityRule
	Actor   model.Actor
}

// ReplaceRules swaps the rule set of one (business, staff) scope. Existing
// appointments are not touched.
func (e *Engine) ReplaceRules(ctx context.Context, req ReplaceRulesRequest) ([]model.AvailabilityRule, error) {
	req.StaffID = strings.TrimSpace(req.StaffID)
	rules := make([]model.AvailabilityRule, 0, len(req.Rules))
	for i, r := range req.Rules {
		if err := availability.ValidateRule(r); err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidInput, fmt.Sprintf("rule %d: %v", i, err))
		}
		r.ID = e.newID()
		r.BusinessID = req.BusinessID
		r.StaffID = req.StaffID
		if !r.Recurring {
			r.StartsAt, r.EndsAt = r.StartsAt.UTC(), r.EndsAt.UTC()
		}
		rules = append(rules, r)
	}

	scope := store.LockScope{BusinessID: req.BusinessID, StaffID: req.StaffID}
	err := e.run(ctx, "replace_rules", scope, apperr.CodeVersionMismatch, func(ctx context.Context, tx store.Tx) error {
		if err := authz.Check(req.Actor, authz.Resource{
			Kind:       authz.ResourceAvailabilityRule,
			BusinessID: req.BusinessID,
			StaffID:    req.StaffID,
		}, authz.OpManage); err != nil {
			return err
		}
		if _, err := tx.GetBusiness(ctx, req.BusinessID); err != nil {
			return notFound(err, "business")
		}
		if req.StaffID != "" {
			if _, err := tx.GetStaff(ctx, req.BusinessID, req.StaffID); err != nil {
				return notFound(err, "staff")
			}
		}
		return tx.ReplaceRules(ctx, req.BusinessID, req.StaffID, rules)
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}
