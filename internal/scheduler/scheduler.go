package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs registered jobs once a day at a fixed UTC wall-clock time.
type Scheduler struct {
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	jobs    []*job
	now     func() time.Time
}

type job struct {
	name   string
	hour   int
	minute int
	fn     func(context.Context)
}

func New(log *zap.SugaredLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Add registers a job to fire daily at the given "15:04" UTC time.
// Jobs must be added before Start.
func (s *Scheduler) Add(name, at string, fn func(context.Context)) error {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return fmt.Errorf("job %s: invalid time %q: %w", name, at, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("job %s: scheduler already started", name)
	}
	s.jobs = append(s.jobs, &job{name: name, hour: t.Hour(), minute: t.Minute(), fn: fn})
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	jobs := s.jobs
	s.mu.Unlock()

	s.log.Infow("scheduler started", "jobs", len(jobs))

	for _, j := range jobs {
		s.wg.Add(1)
		go s.run(j)
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("stopping scheduler...")
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(j *job) {
	defer s.wg.Done()

	for {
		next := nextRun(s.now(), j.hour, j.minute)
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(j)
		}
	}
}

func (s *Scheduler) fire(j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("job panicked", "job", j.name, "panic", r)
		}
	}()

	s.log.Infow("job started", "job", j.name)
	started := s.now()
	j.fn(s.ctx)
	s.log.Infow("job finished", "job", j.name, "took", s.now().Sub(started))
}

// nextRun returns the next instant strictly after now at the given
// UTC wall-clock time.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
