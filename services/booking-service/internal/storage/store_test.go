package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/serviceboard/libs/db"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"exclusion", &pgconn.PgError{Code: db.CodeExclusionViolation}, store.ErrConflict},
		{"serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: db.CodeSerializationFailure}), store.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: db.CodeDeadlockDetected}, store.ErrConflict},
		{"unique", &pgconn.PgError{Code: db.CodeUniqueViolation}, store.ErrDuplicate},
		{"no rows", pgx.ErrNoRows, store.ErrNotFound},
		{"bad uuid", &pgconn.PgError{Code: db.CodeInvalidText}, store.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tc.err, got, tc.want)
			}
			if !errors.Is(got, tc.err) {
				t.Fatal("original error must stay in the chain")
			}
		})
	}

	if mapError(nil) != nil {
		t.Fatal("nil stays nil")
	}
	plain := errors.New("boom")
	if got := mapError(plain); got != plain {
		t.Fatalf("unmapped error changed: %v", got)
	}
}

func TestLockKeyScopesByStaff(t *testing.T) {
	a := store.LockScope{BusinessID: "b1", StaffID: "s1"}.Key()
	b := store.LockScope{BusinessID: "b1", StaffID: ""}.Key()
	if a == b {
		t.Fatalf("staff and business scopes share key %q", a)
	}
}
