// Package units converts between SI storage values and display units.
//
// All persisted quantities are SI (metres, seconds, metres per second); a
// System translates them into the user's preferred units on the way out.
package units

import (
	"fmt"
	"time"
)

// Dimension identifies the kind of quantity a value carries.
type Dimension string

const (
	Distance Dimension = "distance"
	Altitude Dimension = "altitude"
	Speed    Dimension = "speed"
	Pace     Dimension = "pace"
	Time     Dimension = "time"
)

// Unit describes a display unit as a multiple of the SI base unit.
type Unit struct {
	Name   string
	Symbol string
	Size   float64
}

// Encode converts an SI value into this unit.
func (u Unit) Encode(value float64) float64 {
	return value / u.Size
}

// Decode converts a value in this unit back to SI.
func (u Unit) Decode(value float64) float64 {
	return value * u.Size
}

var (
	Metre        = Unit{Name: "metre", Symbol: "m", Size: 1}
	Kilometre    = Unit{Name: "kilometre", Symbol: "km", Size: 1000}
	Mile         = Unit{Name: "mile", Symbol: "mi", Size: 1609.344}
	Foot         = Unit{Name: "foot", Symbol: "ft", Size: 0.3048}
	KMPerHour    = Unit{Name: "kilometre per hour", Symbol: "km/h", Size: 1.0 / 3.6}
	MilePerHour  = Unit{Name: "mile per hour", Symbol: "mph", Size: 1609.344 / 3600}
	MinPerKM     = PaceUnit{Distance: Kilometre}
	MinPerMile   = PaceUnit{Distance: Mile}
)

// PaceUnit is an inverse-speed unit such as minutes per kilometre. Encoding a
// speed in m/s yields the duration needed to cover one distance unit.
type PaceUnit struct {
	Distance Unit
}

// Symbol returns the display symbol, e.g. "/km".
func (p PaceUnit) Symbol() string {
	return "/" + p.Distance.Symbol
}

// Encode converts a speed in m/s to the time per distance unit.
func (p PaceUnit) Encode(speed float64) time.Duration {
	if speed <= 0 {
		return 0
	}
	return time.Duration(p.Distance.Size / speed * float64(time.Second))
}

// System is a coherent set of display units, one per dimension.
type System struct {
	Name     string
	Distance Unit
	Altitude Unit
	Speed    Unit
	Pace     PaceUnit
}

var (
	// Metric is the default unit system.
	Metric = System{Name: "metric", Distance: Kilometre, Altitude: Metre, Speed: KMPerHour, Pace: MinPerKM}
	// Imperial uses miles, feet and min/mi pace.
	Imperial = System{Name: "imperial", Distance: Mile, Altitude: Foot, Speed: MilePerHour, Pace: MinPerMile}
)

// SystemByName resolves a unit system, defaulting to metric.
func SystemByName(name string) (System, error) {
	switch name {
	case "", Metric.Name:
		return Metric, nil
	case Imperial.Name:
		return Imperial, nil
	default:
		return System{}, fmt.Errorf("unknown unit system %q", name)
	}
}

// FormatDistance renders an SI distance with two decimals and a symbol.
func (s System) FormatDistance(metres float64) string {
	return fmt.Sprintf("%.2f %s", s.Distance.Encode(metres), s.Distance.Symbol)
}

// FormatAltitude renders an SI altitude rounded to whole units.
func (s System) FormatAltitude(metres float64) string {
	return fmt.Sprintf("%.0f %s", s.Altitude.Encode(metres), s.Altitude.Symbol)
}

// FormatSpeed renders a speed in m/s with two decimals and a symbol.
func (s System) FormatSpeed(metresPerSecond float64) string {
	return fmt.Sprintf("%.2f %s", s.Speed.Encode(metresPerSecond), s.Speed.Symbol)
}

// FormatPace renders a speed in m/s as a pace, e.g. "4:30 /km".
func (s System) FormatPace(metresPerSecond float64) string {
	pace := s.Pace.Encode(metresPerSecond)
	if pace == 0 {
		return "-"
	}
	mins := int(pace.Minutes())
	secs := int(pace.Seconds()) % 60
	return fmt.Sprintf("%d:%02d %s", mins, secs, s.Pace.Symbol())
}
