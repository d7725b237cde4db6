// Package sched runs the recurring jobs: interval cycles and fixed
// time-of-day jobs. A job never overlaps itself; a tick that arrives while
// the previous run is still going is skipped.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stocksentry/stocksentry/internal/observ"
)

type job struct {
	name    string
	run     func(context.Context)
	running atomic.Bool
}

func (j *job) fire(ctx context.Context) {
	if !j.running.CompareAndSwap(false, true) {
		observ.Log("job_skipped_running", map[string]any{"job": j.name})
		observ.IncCounter("sched_skips_total", map[string]string{"job": j.name})
		return
	}
	defer j.running.Store(false)

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			observ.Log("job_panic", map[string]any{"job": j.name, "panic": r})
		}
		observ.CycleDone(j.name, started)
	}()
	j.run(ctx)
}

// Scheduler drives registered jobs until Stop.
type Scheduler struct {
	Now func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
	started bool

	every []everyJob
	daily []dailyJob
}

type everyJob struct {
	j        *job
	interval time.Duration
}

type dailyJob struct {
	j    *job
	hour int
	min  int
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Every registers a job that runs once right after Start and then each
// interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.every = append(s.every, everyJob{j: &job{name: name, run: fn}, interval: interval})
}

// DailyAt registers a job that runs once a day at hh:mm UTC.
func (s *Scheduler) DailyAt(name string, at string, fn func(context.Context)) error {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = append(s.daily, dailyJob{j: &job{name: name, run: fn}, hour: t.Hour(), min: t.Minute()})
	return nil
}

// Start launches all registered jobs. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, e := range s.every {
		e := e
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runEvery(e)
		}()
	}
	for _, d := range s.daily {
		d := d
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runDaily(d)
		}()
	}
}

func (s *Scheduler) runEvery(e everyJob) {
	e.j.fire(s.ctx)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			e.j.fire(s.ctx)
		}
	}
}

func (s *Scheduler) runDaily(d dailyJob) {
	for {
		wait := s.untilNext(d.hour, d.min)
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.j.fire(s.ctx)
		}
	}
}

func (s *Scheduler) untilNext(hour, min int) time.Duration {
	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// Stop cancels all jobs and waits for in-flight runs to return. No new
// cycles start after Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
