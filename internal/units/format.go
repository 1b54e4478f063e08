package units

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders a duration the way the activity list shows elapsed
// time: "3 d 02:10:05", "02:10:05", "04:05" or "42".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	// Round once up front so a sub-minute remainder can never carry into ":60".
	d = d.Round(time.Second)

	var b strings.Builder
	if days := d / (24 * time.Hour); days > 0 {
		fmt.Fprintf(&b, "%d d ", days)
		d %= 24 * time.Hour
	}

	hours := d / time.Hour
	d %= time.Hour
	mins := d / time.Minute
	secs := int(d%time.Minute) / int(time.Second)

	switch {
	case b.Len() > 0 || hours > 0:
		fmt.Fprintf(&b, "%02d:%02d:%02d", hours, mins, secs)
	case mins > 0:
		fmt.Fprintf(&b, "%02d:%02d", mins, secs)
	default:
		fmt.Fprintf(&b, "%02d", secs)
	}
	return b.String()
}
