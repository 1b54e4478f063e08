// Package track computes statistics over recorded GPS tracks.
//
// A Track is an ordered series of points already decoded from whatever file
// the client used; this package only deals with the geometry and timing.
package track

import (
	"errors"
	"math"
	"sort"
	"time"
)

// EarthRadiusMetres is the IUGG mean earth radius.
const EarthRadiusMetres = 6371008.7714

// Point is a single recorded track sample. Elevation may be absent.
type Point struct {
	Lat       float64
	Lon       float64
	EleMetres *float64
	Time      time.Time
}

// Track is an ordered point series.
type Track struct {
	points []Point
}

// ErrTooFewPoints is returned when a track cannot produce statistics.
var ErrTooFewPoints = errors.New("track needs at least two timed points")

// New validates and wraps a point series. Points are sorted by time.
func New(points []Point) (*Track, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	for _, p := range points {
		if p.Time.IsZero() {
			return nil, ErrTooFewPoints
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return nil, errors.New("track point out of coordinate range")
		}
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	return &Track{points: sorted}, nil
}

// Points returns the underlying samples in time order.
func (t *Track) Points() []Point {
	return t.points
}

// StartTime is the timestamp of the first sample.
func (t *Track) StartTime() time.Time {
	return t.points[0].Time
}

// ElapsedTime spans the first to last sample.
func (t *Track) ElapsedTime() time.Duration {
	return t.points[len(t.points)-1].Time.Sub(t.points[0].Time)
}

// HasAltitude reports whether any sample carries elevation.
func (t *Track) HasAltitude() bool {
	for _, p := range t.points {
		if p.EleMetres != nil {
			return true
		}
	}
	return false
}

// toCartesian projects a point onto a sphere of the earth radius plus its
// elevation. Chord distance between projected points approximates ground
// distance well at track sample spacing.
func toCartesian(p Point) (x, y, z float64) {
	ele := 0.0
	if p.EleMetres != nil {
		ele = *p.EleMetres
	}
	lat := p.Lat * math.Pi / 180
	lon := p.Lon * math.Pi / 180
	r := EarthRadiusMetres + ele
	return r * math.Cos(lat) * math.Cos(lon), r * math.Cos(lat) * math.Sin(lon), r * math.Sin(lat)
}

func pointDistance(a, b Point) float64 {
	ax, ay, az := toCartesian(a)
	bx, by, bz := toCartesian(b)
	dx, dy, dz := ax-bx, ay-by, az-bz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Length is the summed segment distance in metres.
func (t *Track) Length() float64 {
	total := 0.0
	for i := 1; i < len(t.points); i++ {
		total += pointDistance(t.points[i-1], t.points[i])
	}
	return total
}

// Ascent sums the positive elevation deltas, Descent the negative ones
// (returned as a positive number). Both are zero without altitude data.
func (t *Track) Ascent() float64 {
	up, _ := t.climbTotals()
	return up
}

// Descent is the total elevation lost, as a positive number.
func (t *Track) Descent() float64 {
	_, down := t.climbTotals()
	return down
}

func (t *Track) climbTotals() (up, down float64) {
	var prev *float64
	for _, p := range t.points {
		if p.EleMetres == nil {
			continue
		}
		if prev != nil {
			delta := *p.EleMetres - *prev
			if delta > 0 {
				up += delta
			} else {
				down -= delta
			}
		}
		prev = p.EleMetres
	}
	return up, down
}

// HighestPoint returns the maximum elevation, or false without altitude data.
func (t *Track) HighestPoint() (float64, bool) {
	highest := math.Inf(-1)
	found := false
	for _, p := range t.points {
		if p.EleMetres != nil && *p.EleMetres > highest {
			highest = *p.EleMetres
			found = true
		}
	}
	return highest, found
}

// AverageSpeed is the track length over its elapsed time, in m/s.
func (t *Track) AverageSpeed() float64 {
	elapsed := t.ElapsedTime().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return t.Length() / elapsed
}

// MaxSpeed is the fastest segment speed in m/s. Segments without a positive
// time delta are skipped so duplicated timestamps cannot produce spikes.
func (t *Track) MaxSpeed() float64 {
	maxSpeed := 0.0
	for i := 1; i < len(t.points); i++ {
		dt := t.points[i].Time.Sub(t.points[i-1].Time).Seconds()
		if dt <= 0 {
			continue
		}
		if speed := pointDistance(t.points[i-1], t.points[i]) / dt; speed > maxSpeed {
			maxSpeed = speed
		}
	}
	return maxSpeed
}

// Center is the midpoint of the track's lat/lon bounding box, used for
// centering route displays.
func (t *Track) Center() (lat, lon float64) {
	minLat, maxLat := t.points[0].Lat, t.points[0].Lat
	minLon, maxLon := t.points[0].Lon, t.points[0].Lon
	for _, p := range t.points[1:] {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
	}
	return (minLat + maxLat) / 2, (minLon + maxLon) / 2
}
