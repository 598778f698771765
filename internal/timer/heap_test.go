package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_Schedule(t *testing.T) {
	tm := NewTimerManager(2)
	tm.Start()
	defer tm.Stop()

	var executed atomic.Bool
	if err := tm.Schedule("status-refresh", time.Now().Add(100*time.Millisecond), func() {
		executed.Store(true)
	}); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if !executed.Load() {
		t.Error("Task was not executed")
	}
}

func TestTimerManager_Cancel(t *testing.T) {
	tm := NewTimerManager(2)
	tm.Start()
	defer tm.Stop()

	var executed atomic.Bool
	if err := tm.Schedule("status-refresh", time.Now().Add(100*time.Millisecond), func() {
		executed.Store(true)
	}); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if !tm.Cancel("status-refresh") {
		t.Error("Cancel returned false")
	}
	if tm.Cancel("status-refresh") {
		t.Error("Second cancel should report nothing removed")
	}

	time.Sleep(200 * time.Millisecond)

	if executed.Load() {
		t.Error("Task was executed despite being cancelled")
	}
}

func TestTimerManager_MultipleTasksOrdering(t *testing.T) {
	tm := NewTimerManager(2)
	tm.Start()
	defer tm.Stop()

	var results []int
	var mu sync.Mutex

	// Schedule tasks in reverse order
	tm.Schedule("refresh-c", time.Now().Add(150*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 3)
		mu.Unlock()
	})

	tm.Schedule("refresh-a", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 1)
		mu.Unlock()
	})

	tm.Schedule("refresh-b", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 2)
		mu.Unlock()
	})

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if len(results) != 3 {
		mu.Unlock()
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0] != 1 || results[1] != 2 || results[2] != 3 {
		t.Errorf("Tasks executed in wrong order: %v", results)
	}
	mu.Unlock()
}

func TestTimerManager_RescheduleExisting(t *testing.T) {
	tm := NewTimerManager(2)
	tm.Start()
	defer tm.Stop()

	count := 0
	var mu sync.Mutex

	// Schedule a task
	tm.Schedule("status-refresh", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	// Reschedule with same ID (should replace)
	tm.Schedule("status-refresh", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		count += 10
		mu.Unlock()
	})

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	if count != 10 {
		t.Errorf("Expected count=10 (only second task), got %d", count)
	}
	mu.Unlock()
}

func TestTimerManager_Stats(t *testing.T) {
	tm := NewTimerManager(5)
	tm.Start()
	defer tm.Stop()

	// Schedule some tasks
	tm.Schedule("refresh-a", time.Now().Add(1*time.Hour), func() {})
	tm.Schedule("refresh-b", time.Now().Add(2*time.Hour), func() {})
	tm.Schedule("refresh-c", time.Now().Add(3*time.Hour), func() {})

	stats := tm.Stats()
	if stats.ScheduledTasks != 3 {
		t.Errorf("Expected 3 scheduled tasks, got %d", stats.ScheduledTasks)
	}
	if stats.Workers != 5 {
		t.Errorf("Expected 5 workers, got %d", stats.Workers)
	}
}

func TestTimerManager_ScheduleAfterStop(t *testing.T) {
	tm := NewTimerManager(1)
	tm.Start()
	tm.Stop()

	err := tm.Schedule("late", time.Now(), func() {})
	if err != ErrManagerStopped {
		t.Errorf("Expected ErrManagerStopped, got %v", err)
	}
}

func TestTimerManager_Every(t *testing.T) {
	tm := NewTimerManager(2)
	tm.Start()
	defer tm.Stop()

	var runs atomic.Int32
	err := tm.Every("status-refresh", time.Now(), 30*time.Millisecond, func() {
		runs.Add(1)
	})
	if err != nil {
		t.Fatalf("Every failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if n := runs.Load(); n < 3 {
		t.Errorf("Expected at least 3 runs, got %d", n)
	}
}

func TestTimerManager_PanicDoesNotKillWorker(t *testing.T) {
	tm := NewTimerManager(1)
	tm.Start()
	defer tm.Stop()

	var ran atomic.Bool
	tm.Schedule("boom", time.Now(), func() { panic("bad csv") })
	tm.Schedule("after", time.Now().Add(50*time.Millisecond), func() { ran.Store(true) })

	time.Sleep(150 * time.Millisecond)

	if !ran.Load() {
		t.Error("Expected task after a panicking task to run")
	}
}

func TestNextRunTime(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		delay    time.Duration
		want     time.Time
	}{
		{
			name:     "before delay in current hour",
			now:      time.Date(2023, 1, 23, 10, 2, 0, 0, time.UTC),
			interval: time.Hour,
			delay:    5 * time.Minute,
			want:     time.Date(2023, 1, 23, 10, 5, 0, 0, time.UTC),
		},
		{
			name:     "after delay in current hour",
			now:      time.Date(2023, 1, 23, 10, 30, 0, 0, time.UTC),
			interval: time.Hour,
			delay:    5 * time.Minute,
			want:     time.Date(2023, 1, 23, 11, 5, 0, 0, time.UTC),
		},
		{
			name:     "exactly on the boundary",
			now:      time.Date(2023, 1, 23, 11, 0, 0, 0, time.UTC),
			interval: time.Hour,
			delay:    0,
			want:     time.Date(2023, 1, 23, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextRunTime(tt.now, tt.interval, tt.delay); !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
