package uptime

import (
	"fmt"
	"time"
)

// TimeOfDay is an offset from local midnight
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from clock components
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second)
}

// ClockOf returns the wall-clock time of t in its own location
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return NewTimeOfDay(h, m, s) + TimeOfDay(t.Nanosecond())
}

// ParseTimeOfDay parses "HH:MM:SS" with optional fractional seconds
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04:05.999999999", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return ClockOf(t), nil
}

func (d TimeOfDay) String() string {
	total := time.Duration(d)
	h := total / time.Hour
	m := (total % time.Hour) / time.Minute
	s := (total % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Window is one day's opening interval in local time
type Window struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// AllDay stands in for a weekday with no schedule. It ends at 23:59:59,
// not midnight.
var AllDay = Window{Open: 0, Close: NewTimeOfDay(23, 59, 59)}

// WeekdayIndex returns the weekday of t with Monday as 0 and Sunday as 6
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// BusinessHours maps a Monday-indexed weekday to its opening window
type BusinessHours map[int]Window

// WindowFor returns the window for a weekday, AllDay when none is set
func (b BusinessHours) WindowFor(weekday int) Window {
	if w, ok := b[weekday]; ok {
		return w
	}
	return AllDay
}

// Overlaps reports whether the local interval [start, end) intersects the
// business hours of start's weekday. Only time-of-day is compared, so an
// interval crossing midnight is judged against the start day's window.
func (b BusinessHours) Overlaps(start, end time.Time) bool {
	w := b.WindowFor(WeekdayIndex(start))
	return ClockOf(start) < w.Close && ClockOf(end) > w.Open
}
