package storage

import (
	"context"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/board"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/store"
)

func (t *pgTx) InsertServiceRequest(ctx context.Context, r *model.ServiceRequest) error {
	items := r.ItemIDs
	if items == nil {
		items = []string{}
	}
	return t.queryRow(ctx, psql.
		Insert("service_requests").
		Columns("id", "business_id", "customer_id", "service_id", "urgent", "item_ids").
		Values(r.ID, r.BusinessID, r.CustomerID, r.ServiceID, r.Urgent, items).
		Suffix("RETURNING created_at"),
		&r.CreatedAt)
}

func (t *pgTx) GetServiceRequest(ctx context.Context, businessID, requestID string) (model.ServiceRequest, error) {
	var r model.ServiceRequest
	err := t.queryRow(ctx, psql.
		Select("id::text", "business_id::text", "customer_id", "service_id::text", "urgent", "item_ids", "created_at").
		From("service_requests").
		Where(sq.Eq{"id": requestID, "business_id": businessID}),
		&r.ID, &r.BusinessID, &r.CustomerID, &r.ServiceID, &r.Urgent, &r.ItemIDs, &r.CreatedAt)
	return r, err
}

func (t *pgTx) InsertBoard(ctx context.Context, b *model.Board) error {
	return t.queryRow(ctx, psql.
		Insert("service_boards").
		Columns("id", "business_id", "service_request_id", "board_ref", "customer_id").
		Values(b.ID, b.BusinessID, b.ServiceRequestID, b.Ref, b.CustomerID).
		Suffix("RETURNING created_at"),
		&b.CreatedAt)
}

var boardColumns = []string{"id::text", "business_id::text", "service_request_id::text", "board_ref", "customer_id", "created_at"}

func (t *pgTx) GetBoardByRequest(ctx context.Context, businessID, requestID string) (model.Board, error) {
	return t.getBoard(ctx, sq.Eq{"business_id": businessID, "service_request_id": requestID})
}

func (t *pgTx) GetBoard(ctx context.Context, businessID, boardID string) (model.Board, error) {
	return t.getBoard(ctx, sq.Eq{"business_id": businessID, "id": boardID})
}

// getBoard locks the board row so concurrent action inserts on one board
// take turns assigning Seq.
func (t *pgTx) getBoard(ctx context.Context, where sq.Eq) (model.Board, error) {
	var b model.Board
	err := t.queryRow(ctx, psql.
		Select(boardColumns...).
		From("service_boards").
		Where(where).
		Suffix("FOR UPDATE"),
		&b.ID, &b.BusinessID, &b.ServiceRequestID, &b.Ref, &b.CustomerID, &b.CreatedAt)
	if err != nil {
		return model.Board{}, err
	}
	b.Actions, err = t.listActions(ctx, sq.Eq{"board_id": b.ID})
	if err != nil {
		return model.Board{}, err
	}
	return b, nil
}

var actionColumns = []string{"id::text", "board_id::text", "seq", "type", "status", "payload", "created_by", "version", "created_at", "updated_at"}

func (t *pgTx) listActions(ctx context.Context, where sq.Eq) ([]model.Action, error) {
	rows, err := t.query(ctx, psql.Select(actionColumns...).
		From("service_board_actions").
		Where(where).
		OrderBy("seq"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		var (
			a   model.Action
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.BoardID, &a.Seq, &a.Type, &a.Status, &raw, &a.CreatedBy, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		// Stored payloads were validated on the way in; approval payloads are
		// decoded without resetting approver state.
		if a.Payload, err = decodeStoredPayload(a.Type, raw); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func decodeStoredPayload(t model.ActionType, raw []byte) (model.Payload, error) {
	if t == model.ActionApproval {
		var p model.ApprovalPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return board.DecodePayload(t, raw)
}

func (t *pgTx) GetAction(ctx context.Context, boardID, actionID string) (model.Action, error) {
	actions, err := t.listActions(ctx, sq.Eq{"board_id": boardID, "id": actionID})
	if err != nil {
		return model.Action{}, mapError(err)
	}
	if len(actions) == 0 {
		return model.Action{}, mapError(pgx.ErrNoRows)
	}
	return actions[0], nil
}

// InsertAction computes the next seq in the insert itself. Select-list
// parameters carry no column type, hence the casts.
func (t *pgTx) InsertAction(ctx context.Context, a *model.Action) error {
	raw, err := board.EncodePayload(a.Payload)
	if err != nil {
		return err
	}
	return t.queryRow(ctx, psql.
		Insert("service_board_actions").
		Columns("id", "board_id", "seq", "type", "status", "payload", "created_by", "version").
		Select(psql.Select().
			Column("?::uuid", a.ID).
			Column("?::uuid", a.BoardID).
			Column("COALESCE(MAX(seq), 0) + 1").
			Column("?", string(a.Type)).
			Column("?", string(a.Status)).
			Column("?::jsonb", string(raw)).
			Column("?", a.CreatedBy).
			Column("?::bigint", a.Version).
			From("service_board_actions").
			Where(sq.Eq{"board_id": a.BoardID})).
		Suffix("RETURNING seq, created_at, updated_at"),
		&a.Seq, &a.CreatedAt, &a.UpdatedAt)
}

func (t *pgTx) UpdateAction(ctx context.Context, a model.Action, expected int64) error {
	raw, err := board.EncodePayload(a.Payload)
	if err != nil {
		return err
	}
	n, err := t.exec(ctx, psql.
		Update("service_board_actions").
		Set("status", string(a.Status)).
		Set("payload", sq.Expr("?::jsonb", string(raw))).
		Set("version", a.Version).
		Set("updated_at", a.UpdatedAt).
		Where(sq.Eq{"id": a.ID, "board_id": a.BoardID, "version": expected}))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrVersionMismatch
	}
	return nil
}
