package track

import "time"

// Split summarises one distance interval of a track.
type Split struct {
	Number    int
	Time      time.Duration
	SpeedMS   float64
	NetClimb  float64
	Ascent    float64
	DistanceM float64
}

// Splits divides the track into consecutive intervals of splitLength metres.
// The final split may be shorter. Climb figures require altitude data and are
// zero without it.
func (t *Track) Splits(splitLength float64) []Split {
	if splitLength <= 0 {
		return nil
	}

	var (
		splits    []Split
		current   Split
		lastEle   *float64
		splitFrom = t.points[0].Time
	)
	current.Number = 1

	finish := func(end time.Time) {
		current.Time = end.Sub(splitFrom)
		if secs := current.Time.Seconds(); secs > 0 {
			current.SpeedMS = current.DistanceM / secs
		}
		splits = append(splits, current)
	}

	for i := 1; i < len(t.points); i++ {
		prev, p := t.points[i-1], t.points[i]
		current.DistanceM += pointDistance(prev, p)

		if p.EleMetres != nil {
			if lastEle != nil {
				delta := *p.EleMetres - *lastEle
				current.NetClimb += delta
				if delta > 0 {
					current.Ascent += delta
				}
			}
			lastEle = p.EleMetres
		}

		if current.DistanceM >= splitLength {
			finish(p.Time)
			splitFrom = p.Time
			current = Split{Number: current.Number + 1}
		}
	}

	if current.DistanceM > 0 {
		finish(t.points[len(t.points)-1].Time)
	}
	return splits
}
