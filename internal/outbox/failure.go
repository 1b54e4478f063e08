package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter persists failed events for investigation.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records a failed outbox message in the DLQ alongside the supplied reason.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.username', $1, true)", msg.Username); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO outbox_dlq (username, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
	         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`,
		msg.Username, msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
	); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	markActivityFailed(ctx, w.pool, msg, reason)
	return nil
}

// markActivityFailed flags the owning activity when its recorded event lands
// in the DLQ. Best effort, the DLQ entry is already durable.
func markActivityFailed(ctx context.Context, pool *pgxpool.Pool, msg Message, reason string) {
	if msg.EventType != "activity.recorded" {
		return
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.username', $1, true)", msg.Username); err != nil {
		return
	}
	if _, err := tx.Exec(ctx,
		`UPDATE activities SET processing_state='failed', failure_reason=$1, updated_at=NOW()
          WHERE activity_id=$2 AND processing_state='pending'`,
		reason, msg.AggregateID,
	); err != nil {
		return
	}
	tx.Commit(ctx)
}
