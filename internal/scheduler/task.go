package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

// Task is a unit of work executed on a fixed interval.
type Task struct {
	// Name is a human-readable identifier used in log messages.
	Name string
	// Interval is the period between successive runs.
	Interval time.Duration
	// RunFunc is executed each tick. Errors are logged and do not stop the loop.
	RunFunc func(ctx context.Context) error
	metrics *Metrics
	logger  *logrus.Entry
}

// NewTask creates a new periodic task.
func NewTask(name string, interval time.Duration, runFunc func(ctx context.Context) error, logger *logrus.Entry) *Task {
	return &Task{
		Name:     name,
		Interval: interval,
		RunFunc:  runFunc,
		logger:   logger.WithField("task", name),
	}
}

// Checker runs a check-for-new-exposures pass.
type Checker interface {
	CheckForNewExposures(ctx context.Context) exposure.Result
}

// NewDetectionTask runs background exposure checks. A failed check is
// reported as the task error so it shows up in the task log.
func NewDetectionTask(interval time.Duration, checker Checker, logger *logrus.Entry) *Task {
	return NewTask("background_detection", interval, func(ctx context.Context) error {
		res := checker.CheckForNewExposures(ctx)
		if !res.OK() {
			return errors.New(res.Error)
		}
		return nil
	}, logger)
}

// Run executes the task immediately, then once per Interval until ctx is done.
func (t *Task) Run(ctx context.Context) {
	t.logger.WithField("interval", t.Interval).Info("task started")

	t.execute(ctx)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("task stopping (context cancelled)")
			return
		case <-ticker.C:
			t.execute(ctx)
		}
	}
}

// execute performs a single invocation and logs the outcome.
func (t *Task) execute(ctx context.Context) {
	start := time.Now()
	err := t.RunFunc(ctx)
	elapsed := time.Since(start)
	t.metrics.observe(t.Name, elapsed.Seconds(), err)

	log := t.logger.WithField("duration", elapsed.Round(time.Millisecond))
	if err != nil {
		log.WithError(err).Warn("task execution failed")
		return
	}
	log.Debug("task execution completed")
}
