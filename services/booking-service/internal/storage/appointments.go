package storage

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

var appointmentColumns = []string{
	"id::text", "business_id::text", "service_id::text", "staff_id", "customer_id",
	"COALESCE(service_request_id::text, '')", "COALESCE(board_id::text, '')",
	"start_time", "end_time", "status", "notes", "status_reason", "version", "created_at", "updated_at",
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.BusinessID,
		&a.ServiceID,
		&a.StaffID,
		&a.CustomerID,
		&a.ServiceRequestID,
		&a.BoardID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Notes,
		&a.StatusReason,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (t *pgTx) listAppointments(ctx context.Context, q sq.SelectBuilder) ([]model.Appointment, error) {
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func blockingStatuses() []string {
	out := make([]string, 0, len(model.BlockingStatuses))
	for _, s := range model.BlockingStatuses {
		out = append(out, string(s))
	}
	return out
}

func (t *pgTx) ListBlocking(ctx context.Context, q store.BusyQuery) ([]model.Appointment, error) {
	sel := psql.Select(appointmentColumns...).
		From("appointments").
		Where(sq.Eq{"business_id": q.BusinessID, "status": blockingStatuses()}).
		Where(sq.Lt{"start_time": q.To}).
		Where(sq.Gt{"end_time": q.From}).
		OrderBy("start_time")
	if !q.AllStaff {
		sel = sel.Where(sq.Eq{"staff_id": []string{"", q.StaffID}})
	}
	return t.listAppointments(ctx, sel)
}

func (t *pgTx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	return t.queryRow(ctx, psql.
		Insert("appointments").
		Columns("id", "business_id", "service_id", "staff_id", "customer_id", "service_request_id", "board_id",
			"start_time", "end_time", "status", "notes", "status_reason", "version").
		Values(a.ID, a.BusinessID, a.ServiceID, a.StaffID, a.CustomerID, nullable(a.ServiceRequestID), nullable(a.BoardID),
			a.StartTime, a.EndTime, string(a.Status), a.Notes, a.StatusReason, a.Version).
		Suffix("RETURNING created_at, updated_at"),
		&a.CreatedAt, &a.UpdatedAt)
}

func (t *pgTx) GetAppointment(ctx context.Context, businessID, appointmentID string) (model.Appointment, error) {
	sql, args, err := psql.Select(appointmentColumns...).
		From("appointments").
		Where(sq.Eq{"id": appointmentID, "business_id": businessID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return model.Appointment{}, err
	}
	a, err := scanAppointment(t.tx.QueryRow(ctx, sql, args...))
	return a, mapError(err)
}

func (t *pgTx) UpdateAppointmentStatus(ctx context.Context, a model.Appointment, expected int64) error {
	n, err := t.exec(ctx, psql.
		Update("appointments").
		Set("status", string(a.Status)).
		Set("status_reason", a.StatusReason).
		Set("version", a.Version).
		Set("updated_at", a.UpdatedAt).
		Where(sq.Eq{"id": a.ID, "business_id": a.BusinessID, "version": expected}))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrVersionMismatch
	}
	return nil
}

func (t *pgTx) ListBoardAppointments(ctx context.Context, businessID, boardID string, statuses []model.AppointmentStatus) ([]model.Appointment, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return t.listAppointments(ctx, psql.Select(appointmentColumns...).
		From("appointments").
		Where(sq.Eq{"business_id": businessID, "board_id": boardID, "status": names}).
		OrderBy("start_time").
		Suffix("FOR UPDATE"))
}

func (t *pgTx) ListOverdueConfirmed(ctx context.Context, endedBefore time.Time, limit int) ([]model.Appointment, error) {
	sel := psql.Select(appointmentColumns...).
		From("appointments").
		Where(sq.Eq{"status": string(model.StatusConfirmed)}).
		Where(sq.Lt{"end_time": endedBefore}).
		OrderBy("end_time")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	return t.listAppointments(ctx, sel)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
