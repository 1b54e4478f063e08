package domain

import (
	"fmt"
	"sort"
	"time"

	"example.com/trackbook/internal/track"
)

// ActivityState represents the processing status of an activity within the
// event pipeline.
type ActivityState string

const (
	ActivityStatePending ActivityState = "pending"
	ActivityStateSynced  ActivityState = "synced"
	ActivityStateFailed  ActivityState = "failed"
)

// ActivityAggregate is the canonical activity record stored in Postgres and
// replayed to downstream stores.
type ActivityAggregate struct {
	ID             string
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
	Version        string
	State          ActivityState
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FailureReason  *string
	QuarantinedAt  *time.Time
}

// universalFlags apply to every sport.
var universalFlags = []string{"Commute", "Indoor"}

// sportFlags extend the universal set per sport.
var sportFlags = map[string][]string{
	track.SportRun:  {"Race", "Long Run", "Workout"},
	track.SportRide: {"Race", "Workout"},
	track.SportSwim: {"Open Water"},
	track.SportSki:  {"Off Piste"},
}

// AllowedFlags returns the valid flag names for a sport, sorted.
func AllowedFlags(sport string) []string {
	flags := append([]string(nil), sportFlags[sport]...)
	flags = append(flags, universalFlags...)
	sort.Strings(flags)
	return flags
}

// ValidateFlags rejects flag names outside the sport's allowed set. A nil map
// is valid and treated as empty.
func ValidateFlags(sport string, flags map[string]bool) error {
	if len(flags) == 0 {
		return nil
	}
	allowed := make(map[string]struct{})
	for _, f := range AllowedFlags(sport) {
		allowed[f] = struct{}{}
	}
	for name := range flags {
		if _, ok := allowed[name]; !ok {
			return fmt.Errorf("flag %q is not valid for sport %q", name, sport)
		}
	}
	return nil
}

// ActiveFlags lists the flag names set to true, sorted for stable display.
func (a ActivityAggregate) ActiveFlags() []string {
	out := make([]string, 0, len(a.Flags))
	for name, set := range a.Flags {
		if set {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Cursor models the list pagination token.
type Cursor struct {
	StartTime time.Time
	ID        string
}
