package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/trackbook/internal/domain"
	"example.com/trackbook/internal/events"
	"example.com/trackbook/internal/observability"
)

// Repository provides Postgres-backed persistence for activities and outbox
// events. Every statement runs with app.username set so row-level security
// confines access to the owning user.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, username, name, sport, flags, effort_level, description,
        start_time, duration_sec, distance_m, climb_m, source, version, processing_state,
        created_at, updated_at, failure_reason, quarantined_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*domain.ActivityAggregate, error) {
	var (
		agg         domain.ActivityAggregate
		durationSec int64
	)
	if err := row.Scan(
		&agg.ID, &agg.Username, &agg.Name, &agg.Sport, &agg.Flags, &agg.EffortLevel, &agg.Description,
		&agg.StartTime, &durationSec, &agg.DistanceMetres, &agg.ClimbMetres, &agg.Source, &agg.Version, &agg.State,
		&agg.CreatedAt, &agg.UpdatedAt, &agg.FailureReason, &agg.QuarantinedAt,
	); err != nil {
		return nil, err
	}
	agg.Duration = time.Duration(durationSec) * time.Second
	if agg.Flags == nil {
		agg.Flags = map[string]bool{}
	}
	return &agg, nil
}

func (r *Repository) beginForUser(ctx context.Context, username string) (pgx.Tx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.username', $1, true)", username); err != nil {
		tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

// FindByIdempotency checks if an activity already exists for the supplied
// idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, username, idempotencyKey string) (*domain.ActivityAggregate, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + activityColumns + ` FROM activities WHERE username=$1 AND idempotency_key=$2`

	tx, err := r.beginForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	agg, err := scanActivity(tx.QueryRow(ctx, query, username, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return agg, nil
}

// Create persists the aggregate and records outbox events inside a single
// transaction.
func (r *Repository) Create(ctx context.Context, aggregate domain.ActivityAggregate, idempotencyKey string) error {
	tx, err := r.beginForUser(ctx, aggregate.Username)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertActivity = `INSERT INTO activities (activity_id, username, name, sport, flags, effort_level, description,
            start_time, duration_sec, distance_m, climb_m, source, idempotency_key, version, processing_state, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	if _, err = tx.Exec(ctx, insertActivity,
		aggregate.ID,
		aggregate.Username,
		aggregate.Name,
		aggregate.Sport,
		aggregate.Flags,
		aggregate.EffortLevel,
		aggregate.Description,
		aggregate.StartTime,
		int64(aggregate.Duration/time.Second),
		aggregate.DistanceMetres,
		aggregate.ClimbMetres,
		aggregate.Source,
		nullIfEmpty(idempotencyKey),
		aggregate.Version,
		aggregate.State,
		aggregate.CreatedAt,
		aggregate.UpdatedAt,
	); err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, aggregate, "activity.recorded", events.ActivityRecorded{
		ActivityID:     aggregate.ID,
		Username:       aggregate.Username,
		Name:           aggregate.Name,
		Sport:          aggregate.Sport,
		StartTime:      aggregate.StartTime,
		DurationSec:    int64(aggregate.Duration / time.Second),
		DistanceMetres: aggregate.DistanceMetres,
		ClimbMetres:    aggregate.ClimbMetres,
		Source:         aggregate.Source,
		Version:        aggregate.Version,
	}); err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, aggregate, "activity.state_changed", events.ActivityStateChanged{
		ActivityID: aggregate.ID,
		Username:   aggregate.Username,
		State:      string(aggregate.State),
		OccurredAt: aggregate.UpdatedAt,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(aggregate.UpdatedAt)
	return nil
}

// Get retrieves an activity by ID for the owning user.
func (r *Repository) Get(ctx context.Context, username, activityID string) (*domain.ActivityAggregate, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE username=$1 AND activity_id=$2`

	tx, err := r.beginForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	agg, err := scanActivity(tx.QueryRow(ctx, query, username, activityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return agg, nil
}

// ListByUser returns activities for a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, username string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	args := []interface{}{username, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE username=$1`

	if cursor != nil {
		query += ` AND (start_time, activity_id) < ($3, $4)`
		args = append(args, cursor.StartTime, cursor.ID)
	}

	query += ` ORDER BY start_time DESC, activity_id DESC LIMIT $2`

	tx, err := r.beginForUser(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.ActivityAggregate, 0, limit)
	for rows.Next() {
		agg, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *agg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit && limit > 0 {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartTime: last.StartTime, ID: last.ID}
	}

	return results, nextCursor, nil
}

// Update rewrites the mutable fields and records the update event.
func (r *Repository) Update(ctx context.Context, aggregate domain.ActivityAggregate) error {
	tx, err := r.beginForUser(ctx, aggregate.Username)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `UPDATE activities
           SET name=$1, sport=$2, flags=$3, effort_level=$4, description=$5, updated_at=$6
         WHERE username=$7 AND activity_id=$8`

	tag, err := tx.Exec(ctx, stmt,
		aggregate.Name,
		aggregate.Sport,
		aggregate.Flags,
		aggregate.EffortLevel,
		aggregate.Description,
		aggregate.UpdatedAt,
		aggregate.Username,
		aggregate.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}

	if err = insertOutbox(ctx, tx, aggregate, "activity.updated", events.ActivityUpdated{
		ActivityID: aggregate.ID,
		Username:   aggregate.Username,
		Name:       aggregate.Name,
		Sport:      aggregate.Sport,
		UpdatedAt:  aggregate.UpdatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes an activity and records the deletion event.
func (r *Repository) Delete(ctx context.Context, username, activityID string) error {
	tx, err := r.beginForUser(ctx, username)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE username=$1 AND activity_id=$2`, username, activityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}

	aggregate := domain.ActivityAggregate{ID: activityID, Username: username}
	if err = insertOutbox(ctx, tx, aggregate, "activity.deleted", events.ActivityDeleted{
		ActivityID: activityID,
		Username:   username,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Summarize aggregates totals for the summary page in one query.
func (r *Repository) Summarize(ctx context.Context, username string, sports []string, since time.Time) (domain.Totals, error) {
	query := `SELECT COUNT(*),
               COALESCE(SUM(distance_m), 0),
               COALESCE(SUM(duration_sec), 0),
               COALESCE(SUM(climb_m), 0),
               COUNT(*) FILTER (WHERE processing_state = 'pending'),
               COUNT(*) FILTER (WHERE processing_state = 'synced'),
               COUNT(*) FILTER (WHERE processing_state = 'failed'),
               MAX(start_time)
          FROM activities WHERE username=$1`
	args := []interface{}{username}

	if len(sports) > 0 {
		args = append(args, sports)
		query += fmt.Sprintf(" AND sport = ANY($%d)", len(args))
	}
	if !since.IsZero() {
		args = append(args, since)
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}

	tx, err := r.beginForUser(ctx, username)
	if err != nil {
		return domain.Totals{}, err
	}
	defer tx.Rollback(ctx)

	var (
		totals      domain.Totals
		durationSec int64
		lastAt      *time.Time
	)
	if err := tx.QueryRow(ctx, query, args...).Scan(
		&totals.Activities,
		&totals.DistanceMetres,
		&durationSec,
		&totals.ClimbMetres,
		&totals.Pending,
		&totals.Synced,
		&totals.Failed,
		&lastAt,
	); err != nil {
		return domain.Totals{}, err
	}
	totals.Duration = time.Duration(durationSec) * time.Second
	totals.LastActivityAt = lastAt

	if err := tx.Commit(ctx); err != nil {
		return domain.Totals{}, err
	}
	return totals, nil
}

// ListForProgression returns the start time and distance of matching
// activities, oldest first.
func (r *Repository) ListForProgression(ctx context.Context, username string, sports []string, since time.Time) ([]domain.ActivityAggregate, error) {
	query := `SELECT activity_id, start_time, distance_m FROM activities WHERE username=$1`
	args := []interface{}{username}

	if len(sports) > 0 {
		args = append(args, sports)
		query += fmt.Sprintf(" AND sport = ANY($%d)", len(args))
	}
	if !since.IsZero() {
		args = append(args, since)
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	query += ` ORDER BY start_time ASC, activity_id ASC`

	tx, err := r.beginForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ActivityAggregate
	for rows.Next() {
		var agg domain.ActivityAggregate
		if err := rows.Scan(&agg.ID, &agg.StartTime, &agg.DistanceMetres); err != nil {
			return nil, err
		}
		agg.Username = username
		results = append(results, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregate domain.ActivityAggregate, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(aggregate)
	dedupeKey := fmt.Sprintf("%s:%s:%d", aggregate.ID, eventType, aggregate.UpdatedAt.UnixNano())

	const stmt = `INSERT INTO outbox (username, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		aggregate.Username,
		"activity",
		aggregate.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.ActivityAggregate) string
}

var eventCatalog = map[string]EventMetadata{
	"activity.recorded": {
		Topic:          "activity_events",
		SchemaSubject:  "activity_events-value",
		PartitionKeyFn: func(a domain.ActivityAggregate) string { return a.Username },
	},
	"activity.updated": {
		Topic:          "activity_events",
		SchemaSubject:  "activity_events-value",
		PartitionKeyFn: func(a domain.ActivityAggregate) string { return a.Username },
	},
	"activity.deleted": {
		Topic:          "activity_events",
		SchemaSubject:  "activity_events-value",
		PartitionKeyFn: func(a domain.ActivityAggregate) string { return a.Username },
	},
	"activity.state_changed": {
		Topic:          "activity_state_changed",
		SchemaSubject:  "activity_state_changed-value",
		PartitionKeyFn: func(a domain.ActivityAggregate) string { return a.ID },
	},
}
