package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/serenio-health/serenio/services/booking-service/internal/model"
	"github.com/serenio-health/serenio/services/booking-service/internal/storage"
)

type fakeFinder struct {
	mu      sync.Mutex
	rows    []storage.Upcoming
	err     error
	calls   int
	lastGap time.Duration
}

func (f *fakeFinder) FindUpcoming(ctx context.Context, from, until time.Time) ([]storage.Upcoming, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastGap = until.Sub(from)
	return f.rows, f.err
}

type fakeStager struct {
	mu      sync.Mutex
	batches [][]storage.Upcoming
	err     error
	block   chan struct{}
}

func (f *fakeStager) StageReminders(ctx context.Context, upcoming []storage.Upcoming) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, upcoming)
	return f.err
}

func (f *fakeStager) staged() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func upcomingAt(id, date, timeSlot string) storage.Upcoming {
	return storage.Upcoming{
		Appointment: model.Appointment{
			ID:             id,
			UserID:         "user-1",
			ProfessionalID: "pro-1",
			Date:           date,
			TimeSlot:       timeSlot,
			Status:         model.StatusBooked,
		},
		RecipientEmail: "user@example.com",
	}
}

func newTestSweeper(finder Finder, stager Stager, now time.Time) *Sweeper {
	s := NewSweeper(slog.New(slog.DiscardHandler), finder, stager, Config{
		Interval:  time.Hour,
		Horizon:   24 * time.Hour,
		OpTimeout: time.Second,
	})
	s.now = func() time.Time { return now }
	return s
}

func TestSweepStagesUpcoming(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	finder := &fakeFinder{rows: []storage.Upcoming{
		upcomingAt("a-1", "2026-03-10", "15:00"),
		upcomingAt("a-2", "2026-03-11", "08:00"),
	}}
	stager := &fakeStager{}
	s := newTestSweeper(finder, stager, now)

	s.Sweep(context.Background())

	if got := stager.staged(); got != 2 {
		t.Fatalf("staged %d reminders, want 2", got)
	}
	if finder.lastGap != 24*time.Hour {
		t.Fatalf("sweep window = %v, want 24h", finder.lastGap)
	}
}

func TestSweepDoesNotRestageSameAppointment(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	finder := &fakeFinder{rows: []storage.Upcoming{upcomingAt("a-1", "2026-03-10", "15:00")}}
	stager := &fakeStager{}
	s := newTestSweeper(finder, stager, now)

	s.Sweep(context.Background())
	s.Sweep(context.Background())

	if got := stager.staged(); got != 1 {
		t.Fatalf("staged %d reminders across two sweeps, want 1", got)
	}
}

func TestSweepRetriesAfterStagingFailure(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	finder := &fakeFinder{rows: []storage.Upcoming{upcomingAt("a-1", "2026-03-10", "15:00")}}
	stager := &fakeStager{err: errors.New("db down")}
	s := newTestSweeper(finder, stager, now)

	s.Sweep(context.Background())
	stager.mu.Lock()
	stager.err = nil
	stager.mu.Unlock()
	s.Sweep(context.Background())

	if got := len(stager.batches); got != 2 {
		t.Fatalf("stager called %d times, want 2 (failure then retry)", got)
	}
}

func TestSweepSkipsWhileRunning(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	finder := &fakeFinder{rows: []storage.Upcoming{upcomingAt("a-1", "2026-03-10", "15:00")}}
	block := make(chan struct{})
	stager := &fakeStager{block: block}
	s := newTestSweeper(finder, stager, now)

	done := make(chan struct{})
	go func() {
		s.Sweep(context.Background())
		close(done)
	}()

	// Wait for the first sweep to reach the stager, then try to overlap.
	for {
		finder.mu.Lock()
		calls := finder.calls
		finder.mu.Unlock()
		if calls == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Sweep(context.Background())

	close(block)
	<-done

	if finder.calls != 1 {
		t.Fatalf("overlapping sweep ran the query %d times, want 1", finder.calls)
	}
	if got := stager.staged(); got != 1 {
		t.Fatalf("staged %d reminders, want 1", got)
	}
}

func TestSweepPrunesPastEntries(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	finder := &fakeFinder{rows: []storage.Upcoming{upcomingAt("a-1", "2026-03-10", "10:00")}}
	stager := &fakeStager{}
	s := newTestSweeper(finder, stager, now)

	s.Sweep(context.Background())
	if len(s.reminded) != 1 {
		t.Fatalf("reminded set has %d entries, want 1", len(s.reminded))
	}

	// Once the slot has passed, its entry is dropped on the next sweep.
	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	finder.rows = nil
	s.Sweep(context.Background())
	if len(s.reminded) != 0 {
		t.Fatalf("reminded set has %d entries after slot passed, want 0", len(s.reminded))
	}
}
