package uptime

import (
	"testing"
	"time"
)

func TestHours_Week(t *testing.T) {
	start := time.Date(2023, 1, 23, 10, 17, 30, 0, time.UTC)
	end := start.Add(7 * 24 * time.Hour)

	count := 0
	prev := time.Time{}
	for h := range Hours(start, end) {
		if count == 0 && !h.Equal(start) {
			t.Errorf("Expected first hour %v, got %v", start, h)
		}
		if count > 0 && h.Sub(prev) != time.Hour {
			t.Errorf("Expected one hour step, got %v", h.Sub(prev))
		}
		if !h.Before(end) {
			t.Errorf("Hour %v is not before end %v", h, end)
		}
		prev = h
		count++
	}

	if count != 168 {
		t.Errorf("Expected 168 hours, got %d", count)
	}
}

func TestHours_PartialLastHour(t *testing.T) {
	start := time.Date(2023, 1, 23, 10, 0, 0, 0, time.UTC)
	end := start.Add(150 * time.Minute)

	var got []time.Time
	for h := range Hours(start, end) {
		got = append(got, h)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 hours, got %d", len(got))
	}
	if !got[2].Equal(start.Add(2 * time.Hour)) {
		t.Errorf("Expected last hour at 12:00, got %v", got[2])
	}
}

func TestHours_Empty(t *testing.T) {
	start := time.Date(2023, 1, 23, 10, 0, 0, 0, time.UTC)

	for _, end := range []time.Time{start, start.Add(-time.Hour)} {
		for h := range Hours(start, end) {
			t.Errorf("Expected no hours, got %v", h)
		}
	}
}

func TestHours_Restartable(t *testing.T) {
	start := time.Date(2023, 1, 23, 10, 0, 0, 0, time.UTC)
	seq := Hours(start, start.Add(5*time.Hour))

	first := 0
	for range seq {
		first++
		if first == 2 {
			break
		}
	}

	second := 0
	for range seq {
		second++
	}

	if first != 2 || second != 5 {
		t.Errorf("Expected 2 then 5 hours, got %d then %d", first, second)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want TimeOfDay
		ok   bool
	}{
		{"09:00:00", NewTimeOfDay(9, 0, 0), true},
		{"23:59:59", NewTimeOfDay(23, 59, 59), true},
		{"00:00:00", 0, true},
		{"10:30:15.5", NewTimeOfDay(10, 30, 15) + TimeOfDay(500*time.Millisecond), true},
		{"25:00:00", 0, false},
		{"nine", 0, false},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ParseTimeOfDay(%q) failed: %v", tt.in, err)
			continue
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q) expected error", tt.in)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDay_String(t *testing.T) {
	if s := NewTimeOfDay(7, 5, 9).String(); s != "07:05:09" {
		t.Errorf("Expected 07:05:09, got %s", s)
	}
}

func TestWeekdayIndex(t *testing.T) {
	monday := time.Date(2023, 1, 23, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		if got := WeekdayIndex(day); got != i {
			t.Errorf("WeekdayIndex(%s) = %d, want %d", day.Weekday(), got, i)
		}
	}
}

func TestBusinessHours_WindowFor(t *testing.T) {
	hours := BusinessHours{2: {Open: NewTimeOfDay(10, 0, 0), Close: NewTimeOfDay(22, 0, 0)}}

	if w := hours.WindowFor(2); w.Open != NewTimeOfDay(10, 0, 0) {
		t.Errorf("Expected configured window, got %+v", w)
	}
	if w := hours.WindowFor(3); w != AllDay {
		t.Errorf("Expected AllDay fallback, got %+v", w)
	}

	var none BusinessHours
	if w := none.WindowFor(0); w != AllDay {
		t.Errorf("Expected AllDay fallback for nil hours, got %+v", w)
	}
}

func TestBusinessHours_OverlapKeyedByStartWeekday(t *testing.T) {
	// Monday 23:30 to Tuesday 00:30, only Monday has a (late) window
	hours := BusinessHours{
		0: {Open: NewTimeOfDay(23, 0, 0), Close: NewTimeOfDay(23, 59, 59)},
		1: {Open: NewTimeOfDay(12, 0, 0), Close: NewTimeOfDay(13, 0, 0)},
	}
	start := time.Date(2023, 1, 23, 23, 30, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	// end's time of day (00:30) is not after Monday's 23:00 open
	if hours.Overlaps(start, end) {
		t.Error("Expected no overlap when the hour wraps past midnight")
	}
}

func TestLoadZone(t *testing.T) {
	loc, err := LoadZone("")
	if err != nil {
		t.Fatalf("LoadZone failed: %v", err)
	}
	if loc.String() != DefaultTimezone {
		t.Errorf("Expected %s, got %s", DefaultTimezone, loc)
	}

	again, _ := LoadZone(DefaultTimezone)
	if again != loc {
		t.Error("Expected cached location to be reused")
	}

	if _, err := LoadZone("Not/AZone"); err == nil {
		t.Error("Expected error for unknown zone")
	}
}

func TestLocalize_DaylightSaving(t *testing.T) {
	loc, err := LoadZone("America/New_York")
	if err != nil {
		t.Fatalf("LoadZone failed: %v", err)
	}

	// Clocks jump from 02:00 EST to 03:00 EDT at 07:00 UTC on 2023-03-12
	before := Localize(time.Date(2023, 3, 12, 6, 0, 0, 0, time.UTC), loc)
	after := Localize(time.Date(2023, 3, 12, 7, 0, 0, 0, time.UTC), loc)

	if before.Hour() != 1 || after.Hour() != 3 {
		t.Errorf("Expected 01:00 then 03:00 local, got %s then %s", before.Format("15:04"), after.Format("15:04"))
	}
}
