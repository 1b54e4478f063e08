// Package domain defines the business logic for the trackbook service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/trackbook/internal/track"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("invalid activity input")
)

// UnnamedActivity is the placeholder used when an import has no name.
const UnnamedActivity = "[No Name]"

const currentVersion = "v1"

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	FindByIdempotency(ctx context.Context, username, idempotencyKey string) (*ActivityAggregate, error)
	Create(ctx context.Context, aggregate ActivityAggregate, idempotencyKey string) error
	Get(ctx context.Context, username, activityID string) (*ActivityAggregate, error)
	ListByUser(ctx context.Context, username string, cursor *Cursor, limit int) ([]ActivityAggregate, *Cursor, error)
	Update(ctx context.Context, aggregate ActivityAggregate) error
	Delete(ctx context.Context, username, activityID string) error
	Summarize(ctx context.Context, username string, sports []string, since time.Time) (Totals, error)
	ListForProgression(ctx context.Context, username string, sports []string, since time.Time) ([]ActivityAggregate, error)
}

// Service orchestrates activity workflows.
type Service struct {
	repo ActivityRepository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo ActivityRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RecordActivityInput captures a manually entered activity from the API layer.
type RecordActivityInput struct {
	Username       string
	Name           string
	Sport          string
	Flags          map[string]bool
	EffortLevel    *int
	Description    string
	StartTime      time.Time
	Duration       time.Duration
	DistanceMetres *float64
	ClimbMetres    *float64
	Source         string
	IdempotencyKey string
}

func (in RecordActivityInput) validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !track.IsCanonicalSport(in.Sport) {
		return fmt.Errorf("%w: unknown sport %q", ErrValidation, in.Sport)
	}
	if in.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", ErrValidation)
	}
	if in.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if in.DistanceMetres != nil && *in.DistanceMetres < 0 {
		return fmt.Errorf("%w: distance must not be negative", ErrValidation)
	}
	if in.ClimbMetres != nil && *in.ClimbMetres < 0 {
		return fmt.Errorf("%w: climb must not be negative", ErrValidation)
	}
	if in.EffortLevel != nil && (*in.EffortLevel < 0 || *in.EffortLevel > 10) {
		return fmt.Errorf("%w: effort_level must be between 0 and 10", ErrValidation)
	}
	if err := ValidateFlags(in.Sport, in.Flags); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// RecordActivity handles idempotent create semantics and outbox recording.
// The second return value reports an idempotent replay.
func (s *Service) RecordActivity(ctx context.Context, input RecordActivityInput) (*ActivityAggregate, bool, error) {
	if err := input.validate(); err != nil {
		return nil, false, err
	}

	if existing, err := s.repo.FindByIdempotency(ctx, input.Username, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	now := s.now().UTC()
	flags := input.Flags
	if flags == nil {
		flags = map[string]bool{}
	}

	aggregate := ActivityAggregate{
		ID:             uuid.NewString(),
		Username:       input.Username,
		Name:           input.Name,
		Sport:          input.Sport,
		Flags:          flags,
		EffortLevel:    input.EffortLevel,
		Description:    input.Description,
		StartTime:      input.StartTime.UTC(),
		Duration:       input.Duration,
		DistanceMetres: input.DistanceMetres,
		ClimbMetres:    input.ClimbMetres,
		Source:         input.Source,
		Version:        currentVersion,
		State:          ActivityStatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, aggregate, input.IdempotencyKey); err != nil {
		return nil, false, err
	}
	return &aggregate, false, nil
}

// ImportActivityInput carries an already decoded track for derivation.
type ImportActivityInput struct {
	Username       string
	Name           string
	RawSport       string
	Points         []track.Point
	Source         string
	IdempotencyKey string
}

// ImportActivity derives start time, duration, distance and climb from the
// supplied track, infers the sport when the raw type is unknown, and records
// the result like a manual activity.
func (s *Service) ImportActivity(ctx context.Context, input ImportActivityInput) (*ActivityAggregate, bool, error) {
	tr, err := track.New(input.Points)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = UnnamedActivity
	}

	sport := track.NormalizeSport(input.RawSport, name)
	if sport == "" {
		sport = track.SportOther
	}

	distance := tr.Length()
	record := RecordActivityInput{
		Username:       input.Username,
		Name:           name,
		Sport:          sport,
		StartTime:      tr.StartTime(),
		Duration:       tr.ElapsedTime(),
		DistanceMetres: &distance,
		Source:         input.Source,
		IdempotencyKey: input.IdempotencyKey,
	}
	if tr.HasAltitude() {
		climb := tr.Ascent()
		record.ClimbMetres = &climb
	}

	return s.RecordActivity(ctx, record)
}

// GetActivity fetches an activity owned by username.
func (s *Service) GetActivity(ctx context.Context, username, activityID string) (*ActivityAggregate, error) {
	agg, err := s.repo.Get(ctx, username, activityID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, ErrActivityNotFound
	}
	return agg, nil
}

// ListActivities fetches activities with cursor pagination, newest first.
func (s *Service) ListActivities(ctx context.Context, username string, cursor *Cursor, limit int) ([]ActivityAggregate, *Cursor, error) {
	return s.repo.ListByUser(ctx, username, cursor, limit)
}

// UpdateActivityInput mirrors the editable fields of the edit dialog.
type UpdateActivityInput struct {
	Name        string
	Sport       string
	Flags       map[string]bool
	EffortLevel *int
	Description string
}

// UpdateActivity applies an edit to the mutable fields and re-validates flags
// against the (possibly changed) sport.
func (s *Service) UpdateActivity(ctx context.Context, username, activityID string, input UpdateActivityInput) (*ActivityAggregate, error) {
	agg, err := s.GetActivity(ctx, username, activityID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !track.IsCanonicalSport(input.Sport) {
		return nil, fmt.Errorf("%w: unknown sport %q", ErrValidation, input.Sport)
	}
	if input.EffortLevel != nil && (*input.EffortLevel < 0 || *input.EffortLevel > 10) {
		return nil, fmt.Errorf("%w: effort_level must be between 0 and 10", ErrValidation)
	}
	if err := ValidateFlags(input.Sport, input.Flags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	agg.Name = input.Name
	agg.Sport = input.Sport
	agg.Flags = input.Flags
	if agg.Flags == nil {
		agg.Flags = map[string]bool{}
	}
	agg.EffortLevel = input.EffortLevel
	agg.Description = input.Description
	agg.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, *agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// DeleteActivity removes an activity and emits the deletion event.
func (s *Service) DeleteActivity(ctx context.Context, username, activityID string) error {
	if _, err := s.GetActivity(ctx, username, activityID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, username, activityID)
}
