// Package scheduler runs recurring jobs for the server: re-applying the
// configured declarations so drift in the store is corrected, and periodic
// integrity scans.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TryLocker is a lock that can be attempted without blocking. *sync.Mutex
// satisfies it.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

// JobFunc is the work of one job run.
type JobFunc func(ctx context.Context) error

// JobStatus reports what a job has done so far.
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int           `json:"runs"`
	Failures  int           `json:"failures"`
	Skipped   int           `json:"skipped"`
	LastRun   time.Time     `json:"lastRun,omitempty"`
	LastError string        `json:"lastError,omitempty"`
}

type job struct {
	name      string
	interval  time.Duration
	exclusive bool
	run       JobFunc

	mu     sync.Mutex
	status JobStatus
}

// Scheduler runs each job on its own ticker. Exclusive jobs take the shared
// lock for the duration of a run; when it is held elsewhere the run is
// skipped, not queued.
type Scheduler struct {
	lock   TryLocker
	logger zerolog.Logger

	jobs []*job

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a scheduler. lock guards exclusive jobs.
func New(lock TryLocker, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		lock:   lock,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers a job. A non-positive interval leaves the job out. Jobs
// added after Start are not run.
func (s *Scheduler) Add(name string, interval time.Duration, exclusive bool, fn JobFunc) {
	if interval <= 0 {
		return
	}
	s.jobs = append(s.jobs, &job{
		name:      name,
		interval:  interval,
		exclusive: exclusive,
		run:       fn,
		status:    JobStatus{Name: name, Interval: interval},
	})
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.jobs)
}

// Start begins the scheduler loops. Every job runs once immediately and then
// on each tick until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("scheduler already running")
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
		s.logger.Info().Str("job", j.name).Dur("interval", j.interval).Msg("job scheduled")
	}
}

// Stop halts the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Status returns a snapshot of every job's status in registration order.
func (s *Scheduler) Status() []JobStatus {
	statuses := make([]JobStatus, len(s.jobs))
	for i, j := range s.jobs {
		j.mu.Lock()
		statuses[i] = j.status
		j.mu.Unlock()
	}
	return statuses
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.execute(ctx, j)
	for {
		select {
		case <-ticker.C:
			s.execute(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	if ctx.Err() != nil {
		return
	}

	if j.exclusive {
		if !s.lock.TryLock() {
			j.mu.Lock()
			j.status.Skipped++
			j.mu.Unlock()
			s.logger.Debug().Str("job", j.name).Msg("skipped: lock held")
			return
		}
		defer s.lock.Unlock()
	}

	start := time.Now()
	err := j.run(ctx)

	j.mu.Lock()
	j.status.Runs++
	j.status.LastRun = start
	j.status.LastError = ""
	if err != nil {
		j.status.Failures++
		j.status.LastError = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("job", j.name).Dur("duration", time.Since(start)).Msg("job failed")
		return
	}
	s.logger.Debug().Str("job", j.name).Dur("duration", time.Since(start)).Msg("job finished")
}
