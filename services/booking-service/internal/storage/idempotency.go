package storage

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// ClaimIdempotencyKey inserts the key if it is new and then locks its row,
// so a concurrent request with the same key waits for the first to finish.
func (t *pgTx) ClaimIdempotencyKey(ctx context.Context, businessID, key string) (string, error) {
	if _, err := t.exec(ctx, psql.
		Insert("booking_idempotency_keys").
		Columns("business_id", "idempotency_key").
		Values(businessID, key).
		Suffix("ON CONFLICT (business_id, idempotency_key) DO NOTHING")); err != nil {
		return "", err
	}

	sql, args, err := psql.
		Select("COALESCE(appointment_id::text, '')").
		From("booking_idempotency_keys").
		Where(sq.Eq{"business_id": businessID, "idempotency_key": key}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return "", err
	}
	var appointmentID string
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&appointmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", mapError(err)
	}
	return appointmentID, nil
}

func (t *pgTx) SaveIdempotencyKey(ctx context.Context, businessID, key, appointmentID string) error {
	_, err := t.exec(ctx, psql.
		Update("booking_idempotency_keys").
		Set("appointment_id", appointmentID).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"business_id": businessID, "idempotency_key": key}))
	return err
}
