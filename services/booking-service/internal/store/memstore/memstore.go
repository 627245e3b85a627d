// Package memstore is an in-memory store.Store backing the engine, handler
// and consumer tests. Transactions run one at a time against a private copy
// of the state that replaces the shared state on commit. Keys mirror the
// Postgres primary keys.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

type state struct {
	businesses   map[string]model.Business
	services     map[string]model.Service
	staff        map[staffKey]model.Staff
	rules        []model.AvailabilityRule
	appointments map[string]model.Appointment
	requests     map[string]model.ServiceRequest
	boards       map[string]model.Board
	actions      map[string][]model.Action
	caps         map[string]int
	idempotency  map[string]string
	inbox        map[string]string
	events       []outbox.Event
}

// staffKey matches the (business_id, id) primary key of the staff table.
type staffKey struct {
	businessID string
	id         string
}

func (s *state) clone() *state {
	actions := make(map[string][]model.Action, len(s.actions))
	for k, v := range s.actions {
		actions[k] = slices.Clone(v)
	}
	return &state{
		businesses:   maps.Clone(s.businesses),
		services:     maps.Clone(s.services),
		staff:        maps.Clone(s.staff),
		rules:        slices.Clone(s.rules),
		appointments: maps.Clone(s.appointments),
		requests:     maps.Clone(s.requests),
		boards:       maps.Clone(s.boards),
		actions:      actions,
		caps:         maps.Clone(s.caps),
		idempotency:  maps.Clone(s.idempotency),
		inbox:        maps.Clone(s.inbox),
		events:       slices.Clone(s.events),
	}
}

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{
		state: &state{
			businesses:   map[string]model.Business{},
			services:     map[string]model.Service{},
			staff:        map[staffKey]model.Staff{},
			appointments: map[string]model.Appointment{},
			requests:     map[string]model.ServiceRequest{},
			boards:       map[string]model.Board{},
			actions:      map[string][]model.Action{},
			caps:         map[string]int{},
			idempotency:  map[string]string{},
			inbox:        map[string]string{},
		},
		now: time.Now,
	}
}

func (s *Store) WithTx(ctx context.Context, _ store.LockScope, fn func(context.Context, store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &tx{state: s.state.clone(), now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Seeding and inspection helpers for tests.

func (s *Store) PutBusiness(b model.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.businesses[b.ID] = b
}

func (s *Store) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.services[svc.ID] = svc
}

func (s *Store) PutStaff(st model.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.staff[staffKey{st.BusinessID, st.ID}] = st
}

func (s *Store) PutRule(r model.AvailabilityRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.rules = append(s.state.rules, r)
}

func (s *Store) PutAppointment(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.appointments[a.ID] = a
}

func (s *Store) SetMonthlyCap(businessID string, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.caps[businessID] = limit
}

// ApplyEntitlements mirrors the Postgres store: the first delivery of an
// event id sets the cap, later ones are reported as duplicates.
func (s *Store) ApplyEntitlements(_ context.Context, eventID, eventType string, ent model.Entitlements) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.state.inbox[eventID]; seen {
		return false, nil
	}
	s.state.inbox[eventID] = eventType
	s.state.caps[ent.BusinessID] = ent.MaxMonthlyAppointments
	return true, nil
}

func (s *Store) MonthlyCap(businessID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.state.caps[businessID]
	return n, ok
}

func (s *Store) Appointment(id string) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.appointments[id]
	return a, ok
}

func (s *Store) Appointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.state.appointments))
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (s *Store) Actions(boardID string) []model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.actions[boardID])
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.events)
}

func (s *Store) Rules(businessID string) []model.AvailabilityRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AvailabilityRule
	for _, r := range s.state.rules {
		if r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	return out
}

type tx struct {
	state *state
	now   func() time.Time
}

func (t *tx) GetBusiness(_ context.Context, businessID string) (model.Business, error) {
	b, ok := t.state.businesses[businessID]
	if !ok {
		return model.Business{}, store.ErrNotFound
	}
	return b, nil
}

func (t *tx) GetService(_ context.Context, businessID, serviceID string) (model.Service, error) {
	svc, ok := t.state.services[serviceID]
	if !ok || svc.BusinessID != businessID {
		return model.Service{}, store.ErrNotFound
	}
	return svc, nil
}

func (t *tx) GetStaff(_ context.Context, businessID, staffID string) (model.Staff, error) {
	st, ok := t.state.staff[staffKey{businessID, staffID}]
	if !ok {
		return model.Staff{}, store.ErrNotFound
	}
	return st, nil
}

func (t *tx) ListRules(_ context.Context, businessID, staffID string) ([]model.AvailabilityRule, error) {
	var out []model.AvailabilityRule
	for _, r := range t.state.rules {
		if r.BusinessID == businessID && (r.StaffID == "" || (staffID != "" && r.StaffID == staffID)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tx) ReplaceRules(_ context.Context, businessID, staffID string, rules []model.AvailabilityRule) error {
	kept := t.state.rules[:0:0]
	for _, r := range t.state.rules {
		if r.BusinessID != businessID || r.StaffID != staffID {
			kept = append(kept, r)
		}
	}
	t.state.rules = append(kept, rules...)
	return nil
}

func (t *tx) ListBlocking(_ context.Context, q store.BusyQuery) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.state.appointments {
		if a.BusinessID != q.BusinessID || !a.Status.Blocking() {
			continue
		}
		if !q.AllStaff && a.StaffID != "" && a.StaffID != q.StaffID {
			continue
		}
		if a.StartTime.Before(q.To) && a.EndTime.After(q.From) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// InsertAppointment enforces the same exclusion the Postgres schema does:
// blocking appointments of one (business, staff) never overlap.
func (t *tx) InsertAppointment(_ context.Context, a *model.Appointment) error {
	if _, exists := t.state.appointments[a.ID]; exists {
		return store.ErrDuplicate
	}
	if a.Status.Blocking() {
		for _, other := range t.state.appointments {
			if other.BusinessID == a.BusinessID && other.StaffID == a.StaffID && other.Status.Blocking() &&
				other.StartTime.Before(a.EndTime) && other.EndTime.After(a.StartTime) {
				return store.ErrConflict
			}
		}
	}
	now := t.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	t.state.appointments[a.ID] = *a
	return nil
}

func (t *tx) GetAppointment(_ context.Context, businessID, appointmentID string) (model.Appointment, error) {
	a, ok := t.state.appointments[appointmentID]
	if !ok || a.BusinessID != businessID {
		return model.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t *tx) UpdateAppointmentStatus(_ context.Context, a model.Appointment, expected int64) error {
	cur, ok := t.state.appointments[a.ID]
	if !ok || cur.BusinessID != a.BusinessID || cur.Version != expected {
		return store.ErrVersionMismatch
	}
	cur.Status = a.Status
	cur.StatusReason = a.StatusReason
	cur.Version = a.Version
	cur.UpdatedAt = a.UpdatedAt
	t.state.appointments[a.ID] = cur
	return nil
}

func (t *tx) ListBoardAppointments(_ context.Context, businessID, boardID string, statuses []model.AppointmentStatus) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.state.appointments {
		if a.BusinessID == businessID && a.BoardID == boardID && slices.Contains(statuses, a.Status) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (t *tx) ListOverdueConfirmed(_ context.Context, endedBefore time.Time, limit int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.state.appointments {
		if a.Status == model.StatusConfirmed && a.EndTime.Before(endedBefore) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) MonthlyCap(_ context.Context, businessID string) (int, bool, error) {
	n, ok := t.state.caps[businessID]
	return n, ok, nil
}

func (t *tx) CountBooked(_ context.Context, businessID string, from, to time.Time) (int, error) {
	n := 0
	for _, a := range t.state.appointments {
		if a.BusinessID != businessID || a.Status == model.StatusCancelled || a.Status == model.StatusRescheduled {
			continue
		}
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertServiceRequest(_ context.Context, r *model.ServiceRequest) error {
	if _, exists := t.state.requests[r.ID]; exists {
		return store.ErrDuplicate
	}
	r.CreatedAt = t.now().UTC()
	t.state.requests[r.ID] = *r
	return nil
}

func (t *tx) GetServiceRequest(_ context.Context, businessID, requestID string) (model.ServiceRequest, error) {
	r, ok := t.state.requests[requestID]
	if !ok || r.BusinessID != businessID {
		return model.ServiceRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (t *tx) InsertBoard(_ context.Context, b *model.Board) error {
	for _, other := range t.state.boards {
		if other.ID == b.ID || (other.BusinessID == b.BusinessID && other.Ref == b.Ref) {
			return store.ErrDuplicate
		}
	}
	b.CreatedAt = t.now().UTC()
	stored := *b
	stored.Actions = nil
	t.state.boards[b.ID] = stored
	return nil
}

func (t *tx) GetBoardByRequest(ctx context.Context, businessID, requestID string) (model.Board, error) {
	for _, b := range t.state.boards {
		if b.BusinessID == businessID && b.ServiceRequestID == requestID {
			return t.GetBoard(ctx, businessID, b.ID)
		}
	}
	return model.Board{}, store.ErrNotFound
}

func (t *tx) GetBoard(_ context.Context, businessID, boardID string) (model.Board, error) {
	b, ok := t.state.boards[boardID]
	if !ok || b.BusinessID != businessID {
		return model.Board{}, store.ErrNotFound
	}
	b.Actions = slices.Clone(t.state.actions[boardID])
	return b, nil
}

func (t *tx) GetAction(_ context.Context, boardID, actionID string) (model.Action, error) {
	for _, a := range t.state.actions[boardID] {
		if a.ID == actionID {
			return a, nil
		}
	}
	return model.Action{}, store.ErrNotFound
}

func (t *tx) InsertAction(_ context.Context, a *model.Action) error {
	if _, ok := t.state.boards[a.BoardID]; !ok {
		return store.ErrNotFound
	}
	list := t.state.actions[a.BoardID]
	a.Seq = len(list) + 1
	now := t.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	t.state.actions[a.BoardID] = append(list, *a)
	return nil
}

func (t *tx) UpdateAction(_ context.Context, a model.Action, expected int64) error {
	list := t.state.actions[a.BoardID]
	for i := range list {
		if list[i].ID != a.ID {
			continue
		}
		if list[i].Version != expected {
			return store.ErrVersionMismatch
		}
		list[i].Status = a.Status
		list[i].Payload = a.Payload
		list[i].Version = a.Version
		list[i].UpdatedAt = a.UpdatedAt
		return nil
	}
	return store.ErrVersionMismatch
}

func (t *tx) AppendEvent(_ context.Context, evt outbox.Event) error {
	t.state.events = append(t.state.events, evt)
	return nil
}

func (t *tx) ClaimIdempotencyKey(_ context.Context, businessID, key string) (string, error) {
	return t.state.idempotency[businessID+"/"+key], nil
}

func (t *tx) SaveIdempotencyKey(_ context.Context, businessID, key, appointmentID string) error {
	t.state.idempotency[businessID+"/"+key] = appointmentID
	return nil
}
