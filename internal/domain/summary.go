package domain

import (
	"context"
	"fmt"
	"time"
)

// Period selects the time window for summary and progression queries.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// PeriodStart returns the inclusive lower bound for a period relative to now.
// The zero time means unbounded.
func PeriodStart(period Period, now time.Time) (time.Time, error) {
	now = now.UTC()
	switch period {
	case "", PeriodAll:
		return time.Time{}, nil
	case PeriodWeek:
		// ISO week: Monday 00:00.
		offset := (int(now.Weekday()) + 6) % 7
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -offset), nil
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown period %q", ErrValidation, period)
	}
}

// Totals aggregates the filtered activities for the summary page.
type Totals struct {
	Activities     int
	DistanceMetres float64
	Duration       time.Duration
	ClimbMetres    float64
	Pending        int
	Synced         int
	Failed         int
	LastActivityAt *time.Time
}

// Summary computes totals for the user's activities, restricted to the given
// sports (nil means all) and period.
func (s *Service) Summary(ctx context.Context, username string, sports []string, period Period) (Totals, error) {
	since, err := PeriodStart(period, s.now())
	if err != nil {
		return Totals{}, err
	}
	return s.repo.Summarize(ctx, username, sports, since)
}

// ProgressionPoint is one step of the cumulative distance series.
type ProgressionPoint struct {
	StartTime           time.Time
	TotalDistanceMetres float64
}

// Progression returns the activity start times with the running distance
// total at each, oldest first.
func (s *Service) Progression(ctx context.Context, username string, sports []string, period Period) ([]ProgressionPoint, error) {
	since, err := PeriodStart(period, s.now())
	if err != nil {
		return nil, err
	}

	activities, err := s.repo.ListForProgression(ctx, username, sports, since)
	if err != nil {
		return nil, err
	}

	points := make([]ProgressionPoint, 0, len(activities))
	total := 0.0
	for _, a := range activities {
		if a.DistanceMetres != nil {
			total += *a.DistanceMetres
		}
		points = append(points, ProgressionPoint{StartTime: a.StartTime, TotalDistanceMetres: total})
	}
	return points, nil
}
