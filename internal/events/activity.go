// Package events defines the payloads published by the outbox dispatcher.
package events

import "time"

// ActivityRecorded is emitted when a new activity is accepted, whether it was
// entered manually or derived from an imported track.
type ActivityRecorded struct {
	ActivityID     string    `json:"activity_id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Sport          string    `json:"sport"`
	StartTime      time.Time `json:"start_time"`
	DurationSec    int64     `json:"duration_sec"`
	DistanceMetres *float64  `json:"distance_m,omitempty"`
	ClimbMetres    *float64  `json:"climb_m,omitempty"`
	Source         string    `json:"source"`
	Version        string    `json:"version"`
}

// ActivityUpdated is emitted after an edit to the mutable activity fields.
type ActivityUpdated struct {
	ActivityID string    `json:"activity_id"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Sport      string    `json:"sport"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ActivityDeleted is emitted when an activity is removed.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityStateChanged tracks processing transitions (pending, synced, failed)
// for optimistic UI flows.
type ActivityStateChanged struct {
	ActivityID string    `json:"activity_id"`
	Username   string    `json:"username"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
	Reason     string    `json:"reason,omitempty"`
}
