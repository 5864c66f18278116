package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// requeueSpec runs the stuck-statement sweep every five minutes.
const requeueSpec = "*/5 * * * *"

// RequeueStore is the slice of store.Store the scheduler needs.
type RequeueStore interface {
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Scheduler returns statements stranded in processing (worker crash,
// redeploy mid-run) to the pending queue on a cron cadence.
type Scheduler struct {
	cron      *cron.Cron
	store     RequeueStore
	olderThan time.Duration
	log       *slog.Logger
}

// NewScheduler builds the cron runner; olderThan is how long a
// statement may sit in processing before it counts as stuck.
func NewScheduler(store RequeueStore, olderThan time.Duration, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(
		cron.VerbosePrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelDebug))))
	return &Scheduler{
		cron:      c,
		store:     store,
		olderThan: olderThan,
		log:       log,
	}
}

// Start registers the requeue job and begins the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(requeueSpec, s.requeue); err != nil {
		return fmt.Errorf("failed to schedule requeue job: %w", err)
	}
	s.cron.Start()
	s.log.Info("requeue scheduler started", "spec", requeueSpec, "older_than", s.olderThan)
	return nil
}

// Stop halts the cron loop; the returned context is done when any
// running job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) requeue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.RequeueStuck(ctx, s.olderThan)
	if err != nil {
		s.log.Error("failed to requeue stuck statements", "error", err)
		return
	}
	if n > 0 {
		s.log.Warn("requeued stuck statements", "count", n)
	}
}
