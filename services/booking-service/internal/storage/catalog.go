package storage

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

func (t *pgTx) GetBusiness(ctx context.Context, businessID string) (model.Business, error) {
	var b model.Business
	err := t.queryRow(ctx, psql.
		Select("id::text", "slug", "timezone", "manager_id", "active").
		From("businesses").
		Where(sq.Eq{"id": businessID}),
		&b.ID, &b.Slug, &b.Timezone, &b.ManagerID, &b.Active)
	return b, err
}

func (t *pgTx) GetService(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	var (
		svc               model.Service
		extras, lineItems []byte
	)
	err := t.queryRow(ctx, psql.
		Select("id::text", "business_id::text", "name", "duration_minutes", "price_cents", "active", "requires_staff", "extras", "line_items").
		From("services").
		Where(sq.Eq{"id": serviceID, "business_id": businessID}),
		&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMinutes, &svc.PriceCents, &svc.Active, &svc.RequiresStaff, &extras, &lineItems)
	if err != nil {
		return model.Service{}, err
	}
	if svc.Extras, err = decodeItems(extras); err != nil {
		return model.Service{}, err
	}
	if svc.LineItems, err = decodeItems(lineItems); err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

type itemRow struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

func decodeItems(raw []byte) ([]model.ServiceItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []itemRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]model.ServiceItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, model.ServiceItem(r))
	}
	return items, nil
}

func (t *pgTx) GetStaff(ctx context.Context, businessID, staffID string) (model.Staff, error) {
	var st model.Staff
	err := t.queryRow(ctx, psql.
		Select("id", "business_id::text", "name", "active").
		From("staff").
		Where(sq.Eq{"id": staffID, "business_id": businessID}),
		&st.ID, &st.BusinessID, &st.Name, &st.Active)
	return st, err
}

var ruleColumns = []string{
	"id::text", "business_id::text", "staff_id", "recurring",
	"COALESCE(weekday, 0)", "COALESCE(start_minute, 0)", "COALESCE(end_minute, 0)",
	"starts_at", "ends_at", "active",
}

func (t *pgTx) ListRules(ctx context.Context, businessID, staffID string) ([]model.AvailabilityRule, error) {
	scope := sq.Or{sq.Eq{"staff_id": ""}}
	if staffID != "" {
		scope = append(scope, sq.Eq{"staff_id": staffID})
	}
	rows, err := t.query(ctx, psql.
		Select(ruleColumns...).
		From("availability_rules").
		Where(sq.Eq{"business_id": businessID}).
		Where(scope))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		var (
			r                model.AvailabilityRule
			weekday          int
			startsAt, endsAt *time.Time
		)
		if err := rows.Scan(&r.ID, &r.BusinessID, &r.StaffID, &r.Recurring, &weekday, &r.StartMinute, &r.EndMinute, &startsAt, &endsAt, &r.Active); err != nil {
			return nil, err
		}
		r.Weekday = time.Weekday(weekday)
		if startsAt != nil {
			r.StartsAt = *startsAt
		}
		if endsAt != nil {
			r.EndsAt = *endsAt
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (t *pgTx) ReplaceRules(ctx context.Context, businessID, staffID string, rules []model.AvailabilityRule) error {
	if _, err := t.exec(ctx, psql.
		Delete("availability_rules").
		Where(sq.Eq{"business_id": businessID, "staff_id": staffID})); err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	ins := psql.Insert("availability_rules").
		Columns("id", "business_id", "staff_id", "recurring", "weekday", "start_minute", "end_minute", "starts_at", "ends_at", "active")
	for _, r := range rules {
		if r.Recurring {
			ins = ins.Values(r.ID, businessID, staffID, true, int(r.Weekday), r.StartMinute, r.EndMinute, nil, nil, r.Active)
			continue
		}
		ins = ins.Values(r.ID, businessID, staffID, false, nil, nil, nil, r.StartsAt, r.EndsAt, r.Active)
	}
	_, err := t.exec(ctx, ins)
	return err
}
