// Package storage is the Postgres implementation of store.Store.
//
// Each transaction is serializable and first takes a transaction-scoped
// advisory lock on its (business, staff) scope, so allocations for one
// resource queue up while unrelated resources proceed in parallel. The
// exclusion constraint on appointments backs the overlap check.
package storage

import (
	"context"
	_ "embed"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/serviceboard/libs/db"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

//go:embed schema.sql
var schema string

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func New(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) WithTx(ctx context.Context, scope store.LockScope, fn func(context.Context, store.Tx) error) error {
	err := db.WithTx(ctx, s.pool, db.Serializable, func(tx pgx.Tx) error {
		if scope.BusinessID != "" {
			if err := db.AdvisoryXactLock(ctx, tx, scope.Key()); err != nil {
				return err
			}
		}
		return fn(ctx, &pgTx{tx: tx, outbox: s.outbox})
	})
	return mapError(err)
}

// mapError translates Postgres failures into store sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsExclusionViolation(err), db.IsRetryable(err):
		return errors.Join(store.ErrConflict, err)
	case db.IsUniqueViolation(err):
		return errors.Join(store.ErrDuplicate, err)
	case db.IsNotFound(err), db.PgCode(err) == db.CodeInvalidText:
		return errors.Join(store.ErrNotFound, err)
	}
	return err
}

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

// queryRow builds q and scans the single row into dest.
func (t *pgTx) queryRow(ctx context.Context, q sq.Sqlizer, dest ...any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return err
	}
	return mapError(t.tx.QueryRow(ctx, sql, args...).Scan(dest...))
}

func (t *pgTx) exec(ctx context.Context, q sq.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) query(ctx context.Context, q sq.Sqlizer) (pgx.Rows, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return t.tx.Query(ctx, sql, args...)
}
