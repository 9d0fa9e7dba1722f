// Package autosave runs periodic snapshot saves on a cron schedule, layered
// over the session's every-N-actions cadence. Sessions serialize their own
// state, so the scheduled save can safely run while actions are recorded.
package autosave

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/perchlabs/echotree/internal/logging"
)

// Saver is the save hook, satisfied by *session.Session.
type Saver interface {
	Save() error
}

// Scheduler triggers a Saver on a cron schedule ("@every 1m", "*/5 * * * *",
// ...).
type Scheduler struct {
	saver    Saver
	schedule string
	cron     *cron.Cron
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
}

// NewScheduler builds a scheduler for the given cron schedule. Nothing runs
// until Start.
func NewScheduler(saver Saver, schedule string) *Scheduler {
	return &Scheduler{
		saver:    saver,
		schedule: schedule,
		cron:     cron.New(),
		log:      logging.WithComponent("autosave"),
	}
}

// Start registers the schedule and begins running. Starting an already
// running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.run)
	if err != nil {
		return err
	}
	s.entryID = entryID
	s.cron.Start()
	s.running = true

	s.log.Info("autosave started",
		slog.String("schedule", s.schedule),
		slog.Time("next_run", s.cron.Entry(s.entryID).Next))
	return nil
}

// Stop halts scheduling and waits for an in-flight save to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.log.Info("autosave stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled save time, zero when not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunNow saves immediately, outside the schedule.
func (s *Scheduler) RunNow() error {
	return s.saver.Save()
}

func (s *Scheduler) run() {
	if err := s.saver.Save(); err != nil {
		s.log.Error("scheduled save failed", slog.Any("error", err))
		return
	}
	s.log.Debug("scheduled save completed")
}
