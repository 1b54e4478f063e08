package track

import "strings"

// Canonical sports as shown in the activity list.
const (
	SportRun   = "Run"
	SportRide  = "Ride"
	SportWalk  = "Walk"
	SportSki   = "Ski"
	SportSwim  = "Swim"
	SportRow   = "Row"
	SportOther = "Other"
)

// Sports lists every canonical sport.
var Sports = []string{SportRun, SportRide, SportWalk, SportSki, SportSwim, SportRow, SportOther}

// sportNames maps the raw type strings found in recording devices and export
// files to canonical sports. Inference scans the keys in this order, so the
// first substring match wins.
var sportNames = []struct {
	raw   string
	sport string
}{
	{"running", SportRun},
	{"cycling", SportRide},
	{"run", SportRun},
	{"ride", SportRide},
	{"hiking", SportWalk},
	{"walking", SportWalk},
	{"alpine_skiing", SportSki},
	{"swimming", SportSwim},
	{"rowing", SportRow},
	{"driving", SportOther},
}

// fitSportCodes maps FIT sport enum values. They never participate in name
// inference.
var fitSportCodes = map[string]string{
	"9":  SportRun,
	"1":  SportRide,
	"16": SportSwim,
}

// NormalizeSport converts a raw sport string to a canonical one. Unknown and
// generic types are inferred from the activity name; if that fails too, the
// empty string is returned.
func NormalizeSport(raw, name string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "unknown" || raw == "generic" {
		return inferSport(name)
	}
	if sport, ok := fitSportCodes[raw]; ok {
		return sport
	}
	for _, entry := range sportNames {
		if entry.raw == raw {
			return entry.sport
		}
	}
	return inferSport(name)
}

func inferSport(name string) string {
	folded := strings.ToLower(name)
	for _, entry := range sportNames {
		if strings.Contains(folded, entry.raw) {
			return entry.sport
		}
	}
	return ""
}

// IsCanonicalSport reports whether sport is one of the known list entries.
func IsCanonicalSport(sport string) bool {
	for _, s := range Sports {
		if s == sport {
			return true
		}
	}
	return false
}
