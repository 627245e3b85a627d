// Package store is the persistence contract of the booking engine. Every
// engine operation runs inside one Store transaction.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports an overlap with a blocking appointment or a
	// transaction that lost a serialization race.
	ErrConflict = errors.New("conflict")
	// ErrVersionMismatch reports a compare-and-swap that matched no row.
	ErrVersionMismatch = errors.New("version mismatch")
	ErrDuplicate       = errors.New("duplicate")
)

// LockScope names the (business, staff) pair a transaction contends on.
// An empty BusinessID takes no lock.
type LockScope struct {
	BusinessID string
	StaffID    string
}

// Key is the advisory lock key of the scope.
func (s LockScope) Key() string {
	return s.BusinessID + ":" + s.StaffID
}

// BusyQuery selects blocking appointments overlapping [From, To).
// With AllStaff every blocking appointment of the business matches;
// otherwise the staff member's own plus unassigned ones.
type BusyQuery struct {
	BusinessID string
	StaffID    string
	AllStaff   bool
	From       time.Time
	To         time.Time
}

type Store interface {
	// WithTx runs fn in one serializable transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, scope LockScope, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	GetBusiness(ctx context.Context, businessID string) (model.Business, error)
	GetService(ctx context.Context, businessID, serviceID string) (model.Service, error)
	GetStaff(ctx context.Context, businessID, staffID string) (model.Staff, error)

	// ListRules returns the general rules of the business plus, when
	// staffID is set, that staff member's own rules.
	ListRules(ctx context.Context, businessID, staffID string) ([]model.AvailabilityRule, error)
	// ReplaceRules swaps every rule of (businessID, staffID) for rules.
	ReplaceRules(ctx context.Context, businessID, staffID string, rules []model.AvailabilityRule) error

	ListBlocking(ctx context.Context, q BusyQuery) ([]model.Appointment, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, businessID, appointmentID string) (model.Appointment, error)
	// UpdateAppointmentStatus writes a's status, reason, version and
	// updated_at where the stored version equals expected.
	UpdateAppointmentStatus(ctx context.Context, a model.Appointment, expected int64) error
	ListBoardAppointments(ctx context.Context, businessID, boardID string, statuses []model.AppointmentStatus) ([]model.Appointment, error)
	// ListOverdueConfirmed returns confirmed appointments of any business
	// that ended before the cutoff.
	ListOverdueConfirmed(ctx context.Context, endedBefore time.Time, limit int) ([]model.Appointment, error)

	// MonthlyCap is the entitlement of the business, if one was received.
	MonthlyCap(ctx context.Context, businessID string) (int, bool, error)
	// CountBooked counts appointments starting in [from, to) that were not
	// cancelled or moved.
	CountBooked(ctx context.Context, businessID string, from, to time.Time) (int, error)

	InsertServiceRequest(ctx context.Context, r *model.ServiceRequest) error
	GetServiceRequest(ctx context.Context, businessID, requestID string) (model.ServiceRequest, error)
	InsertBoard(ctx context.Context, b *model.Board) error
	GetBoardByRequest(ctx context.Context, businessID, requestID string) (model.Board, error)
	// GetBoard loads the board with its actions ordered by Seq.
	GetBoard(ctx context.Context, businessID, boardID string) (model.Board, error)
	GetAction(ctx context.Context, boardID, actionID string) (model.Action, error)
	// InsertAction assigns the next Seq of the board.
	InsertAction(ctx context.Context, a *model.Action) error
	UpdateAction(ctx context.Context, a model.Action, expected int64) error

	AppendEvent(ctx context.Context, evt outbox.Event) error

	// ClaimIdempotencyKey locks key for the business and returns the
	// appointment id stored under it, or "" for a fresh key.
	ClaimIdempotencyKey(ctx context.Context, businessID, key string) (string, error)
	SaveIdempotencyKey(ctx context.Context, businessID, key, appointmentID string) error
}
