// Package scheduler runs the bot's periodic sweeps: event and promo expiry,
// giveaway draws, VIP expiry, mission assignment and the weekly reset.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
)

// Job is one run of a periodic task. now is the scheduled tick time in UTC.
type Job func(ctx context.Context, now time.Time) error

type job struct {
	name string
	next func(after time.Time) time.Time
	run  Job
}

// Scheduler owns named periodic jobs. Jobs are registered before Start and
// stopped together by Stop.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []job
	running map[string]bool
	started bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	now func() time.Time
	log *slog.Logger
}

func New() *Scheduler {
	return &Scheduler{
		running: make(map[string]bool),
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.Component("scheduler"),
	}
}

// Every runs fn every interval, first after one interval has passed.
func (s *Scheduler) Every(name string, interval time.Duration, fn Job) {
	if interval <= 0 {
		panic(fmt.Sprintf("scheduler: job %q has non-positive interval", name))
	}
	s.add(job{name: name, run: fn, next: func(after time.Time) time.Time { return after.Add(interval) }})
}

// Daily runs fn every day at hour:00 UTC.
func (s *Scheduler) Daily(name string, hour int, fn Job) {
	s.add(job{name: name, run: fn, next: func(after time.Time) time.Time { return NextDaily(after, hour) }})
}

// Weekly runs fn every week on day at hour:00 UTC.
func (s *Scheduler) Weekly(name string, day time.Weekday, hour int, fn Job) {
	s.add(job{name: name, run: fn, next: func(after time.Time) time.Time { return NextWeekly(after, day, hour) }})
}

func (s *Scheduler) add(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic(fmt.Sprintf("scheduler: job %q registered after Start", j.name))
	}
	for _, existing := range s.jobs {
		if existing.name == j.name {
			panic(fmt.Sprintf("scheduler: job %q registered twice", j.name))
		}
	}
	s.jobs = append(s.jobs, j)
}

// Start launches one goroutine per job. Calling Start twice is a no-op.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(parent)
	for _, j := range s.jobs {
		s.running[j.name] = true
		s.wg.Add(1)
		go s.loop(j)
	}
	s.log.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels every job and waits up to timeout for in-flight runs. It
// returns the names of jobs that had not exited in time.
func (s *Scheduler) Stop(timeout time.Duration) []string {
	s.mu.Lock()
	if !s.started || s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-timer.C:
		s.mu.Lock()
		defer s.mu.Unlock()
		remaining := make([]string, 0, len(s.running))
		for name := range s.running {
			remaining = append(remaining, name)
		}
		s.log.Warn("scheduler stop timed out", "remaining", remaining)
		return remaining
	}
}

func (s *Scheduler) loop(j job) {
	defer func() {
		s.mu.Lock()
		delete(s.running, j.name)
		s.mu.Unlock()
		s.wg.Done()
	}()

	for {
		now := s.now()
		at := j.next(now)
		timer := time.NewTimer(at.Sub(now))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runOnce(s.ctx, j, at)
	}
}

// runOnce executes a single run. Errors and panics are logged and counted;
// the job keeps its schedule either way.
func (s *Scheduler) runOnce(ctx context.Context, j job, at time.Time) {
	start := time.Now()
	outcome := metrics.OK
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.Failed
			s.log.Error("job panicked", "job", j.name, "panic", r)
		}
		metrics.SweepRuns.WithLabelValues(j.name, outcome).Inc()
		metrics.SweepDuration.WithLabelValues(j.name).Observe(time.Since(start).Seconds())
	}()

	if err := j.run(ctx, at); err != nil {
		outcome = metrics.Failed
		s.log.Error("job failed", "job", j.name, "error", err)
		return
	}
	s.log.Debug("job done", "job", j.name, "duration", time.Since(start))
}

// NextDaily returns the first hour:00 UTC strictly after t.
func NextDaily(t time.Time, hour int) time.Time {
	t = t.UTC()
	at := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
	if !at.After(t) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// NextWeekly returns the first day at hour:00 UTC strictly after t.
func NextWeekly(t time.Time, day time.Weekday, hour int) time.Time {
	t = t.UTC()
	days := (int(day) - int(t.Weekday()) + 7) % 7
	at := time.Date(t.Year(), t.Month(), t.Day()+days, hour, 0, 0, 0, time.UTC)
	if !at.After(t) {
		at = at.AddDate(0, 0, 7)
	}
	return at
}
