package storage

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/serviceboard/libs/db"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

func (t *pgTx) MonthlyCap(ctx context.Context, businessID string) (int, bool, error) {
	sql, args, err := psql.
		Select("max_monthly_appointments").
		From("business_entitlements").
		Where(sq.Eq{"business_id": businessID}).
		ToSql()
	if err != nil {
		return 0, false, err
	}
	var limit int
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&limit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, mapError(err)
	}
	return limit, true, nil
}

func (t *pgTx) CountBooked(ctx context.Context, businessID string, from, to time.Time) (int, error) {
	var n int
	err := t.queryRow(ctx, psql.
		Select("COUNT(*)").
		From("appointments").
		Where(sq.Eq{"business_id": businessID}).
		Where(sq.NotEq{"status": []string{string(model.StatusCancelled), string(model.StatusRescheduled)}}).
		Where(sq.GtOrEq{"start_time": from}).
		Where(sq.Lt{"start_time": to}),
		&n)
	return n, err
}

// ApplyEntitlements records the event in the inbox and upserts the limits in
// one transaction. It reports false when the event was already applied.
func (s *Store) ApplyEntitlements(ctx context.Context, eventID, eventType string, ent model.Entitlements) (bool, error) {
	applied := false
	err := db.WithTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		fresh, err := inbox.Record(ctx, tx, eventID, eventType)
		if err != nil || !fresh {
			return err
		}
		sql, args, err := psql.
			Insert("business_entitlements").
			Columns("business_id", "tier", "max_monthly_appointments").
			Values(ent.BusinessID, ent.Tier, ent.MaxMonthlyAppointments).
			Suffix(`ON CONFLICT (business_id) DO UPDATE SET
				tier = EXCLUDED.tier,
				max_monthly_appointments = EXCLUDED.max_monthly_appointments,
				updated_at = now()`).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, mapError(err)
}
