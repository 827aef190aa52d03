// Package scheduler runs periodic background work, such as exposure
// detection passes, for the lifetime of a session.
package scheduler

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scheduler manages a set of periodic tasks, running each in its own goroutine.
type Scheduler struct {
	tasks   []*Task
	metrics *Metrics
	logger  *logrus.Entry

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records every task execution in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *logrus.Entry, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: logger.WithField("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTask registers a task to be started when Start is called.
// It must be called before Start. Tasks with a non-positive interval are ignored.
func (s *Scheduler) AddTask(task *Task) {
	if task.Interval <= 0 {
		s.logger.WithField("task", task.Name).Info("task disabled (no interval)")
		return
	}
	task.metrics = s.metrics
	s.tasks = append(s.tasks, task)
}

// Tasks returns the number of registered tasks.
func (s *Scheduler) Tasks() int {
	return len(s.tasks)
}

// Start launches a goroutine for every registered task. Each goroutine runs
// until ctx is cancelled or Stop is called. Starting a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.logger.Warn("scheduler already running")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.WithField("task_count", len(s.tasks)).Info("starting scheduler")

	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(task *Task) {
			defer s.wg.Done()
			task.Run(ctx)
		}(t)
	}
}

// Stop cancels all running tasks and blocks until every goroutine has returned.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.logger.Info("stopping scheduler")
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.logger.Info("scheduler stopped")
}
