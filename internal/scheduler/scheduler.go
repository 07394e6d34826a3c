package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GregMSThompson/potsync-backend/pkg/logger"
)

// Scheduler runs one job on a fixed interval. Runs never overlap: a tick that
// arrives while the previous run is still in flight is skipped, so a slow
// provider can never stack cycles on top of each other.
type Scheduler struct {
	job      func(ctx context.Context) error
	interval atomic.Int64 // nanoseconds
	running  atomic.Bool

	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(job func(ctx context.Context) error, interval time.Duration, log *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		job:    job,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	s.interval.Store(int64(interval))
	return s
}

// Start launches the scheduling loop. The first run happens after one full
// interval, not immediately.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	s.log.Info("scheduler started", "interval", s.Interval().String())
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.runOnce()
			timer.Reset(s.Interval())
		}
	}
}

// runOnce executes the job unless a run is already in flight.
func (s *Scheduler) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous run still in flight, skipping tick")
		return
	}
	defer s.running.Store(false)

	ctx := logger.ToContext(s.ctx, s.log)
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled run failed", "error", err, "took", time.Since(start).String())
		return
	}
	s.log.Info("scheduled run finished", "took", time.Since(start).String())
}

// Interval returns the current tick interval.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the tick interval. The new value applies from the next
// timer reset; a tick already armed fires on the old schedule.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 || int64(d) == s.interval.Load() {
		return
	}
	s.interval.Store(int64(d))
	s.log.Info("scheduler interval changed", "interval", d.String())
}

// TriggerNow runs the job immediately, off the tick schedule. The in-flight
// guard still applies.
func (s *Scheduler) TriggerNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOnce()
	}()
}

// Shutdown stops the loop and waits for any in-flight run, up to the timeout.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-time.After(timeout):
		s.log.Warn("timeout waiting for in-flight run to finish")
	}
}
