// Package inbox de-duplicates consumed events by id.
package inbox

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Record stores the event id inside tx and reports whether it was new.
// The insert does not raise on a duplicate, so tx stays usable either way.
func Record(ctx context.Context, tx pgx.Tx, eventID, eventType string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
