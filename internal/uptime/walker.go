package uptime

import (
	"iter"
	"time"
)

// Hours yields start, start+1h, start+2h, ... while the value is before end.
// The sequence is empty when end is not after start. Each call to the
// returned function restarts from start.
func Hours(start, end time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for t := start; t.Before(end); t = t.Add(time.Hour) {
			if !yield(t) {
				return
			}
		}
	}
}
