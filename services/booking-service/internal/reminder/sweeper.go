// Package reminder periodically finds booked appointments that start soon and
// stages reminder-due events for the notification pipeline. The sweep is
// read-only over the appointment ledger; delivery is the notification
// service's job, so a crashed sweep at worst re-stages a reminder.
package reminder

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/serenio-health/serenio/services/booking-service/internal/storage"
)

// Finder lists booked appointments starting inside [from, until).
type Finder interface {
	FindUpcoming(ctx context.Context, from, until time.Time) ([]storage.Upcoming, error)
}

// Stager persists reminder-due events for the given appointments.
type Stager interface {
	StageReminders(ctx context.Context, upcoming []storage.Upcoming) error
}

type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// Horizon is how far ahead a slot may start to be due a reminder.
	Horizon time.Duration
	// OpTimeout bounds one sweep end to end.
	OpTimeout time.Duration
}

type Sweeper struct {
	logger *slog.Logger
	finder Finder
	stager Stager
	cfg    Config

	running atomic.Bool
	// reminded maps appointment id to slot start, so an appointment is
	// staged once per process even though the horizon window sees it on
	// every sweep. Lost on restart; duplicates across restarts are
	// tolerated downstream.
	reminded map[string]time.Time

	now func() time.Time
}

func NewSweeper(logger *slog.Logger, finder Finder, stager Stager, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 24 * time.Hour
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}
	return &Sweeper{
		logger:   logger,
		finder:   finder,
		stager:   stager,
		cfg:      cfg,
		reminded: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. A pass still in flight when the next one is due makes
// the new pass a no-op rather than stacking up.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("reminder sweep still running, skipping this tick")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	now := s.now()
	s.prune(now)

	upcoming, err := s.finder.FindUpcoming(ctx, now, now.Add(s.cfg.Horizon))
	if err != nil {
		s.logger.Error("reminder sweep query failed", "err", err)
		return
	}

	due := make([]storage.Upcoming, 0, len(upcoming))
	for _, u := range upcoming {
		if _, ok := s.reminded[u.Appointment.ID]; ok {
			continue
		}
		due = append(due, u)
	}
	if len(due) == 0 {
		return
	}

	if err := s.stager.StageReminders(ctx, due); err != nil {
		s.logger.Error("reminder staging failed", "err", err, "count", len(due))
		return
	}
	for _, u := range due {
		s.reminded[u.Appointment.ID] = slotStart(u.Appointment.Date, u.Appointment.TimeSlot)
	}
	s.logger.Info("reminders staged", "count", len(due))
}

func (s *Sweeper) prune(now time.Time) {
	for id, start := range s.reminded {
		if start.Before(now) {
			delete(s.reminded, id)
		}
	}
}

func slotStart(date, timeSlot string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", date+" "+timeSlot)
	if err != nil {
		return time.Time{}
	}
	return t
}
