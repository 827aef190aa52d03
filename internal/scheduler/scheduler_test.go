package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

type stubChecker struct {
	calls  atomic.Int32
	result exposure.Result
}

func (c *stubChecker) CheckForNewExposures(context.Context) exposure.Result {
	c.calls.Add(1)
	return c.result
}

func TestTaskRunsImmediatelyAndOnInterval(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	var runs atomic.Int32
	task := NewTask("count", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, logrus.NewEntry(logger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		task.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestTaskErrorsDoNotStopLoop(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	var runs atomic.Int32
	task := NewTask("failing", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("nope")
	}, logrus.NewEntry(logger))

	sched := NewScheduler(logrus.NewEntry(logger))
	sched.AddTask(task)
	sched.Start(context.Background())

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	sched.Stop()

	var failures int
	for _, e := range hook.AllEntries() {
		if e.Message == "task execution failed" {
			failures++
		}
	}
	assert.GreaterOrEqual(t, failures, 2)
}

func TestDetectionTask(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	checker := &stubChecker{result: exposure.Failure("network")}
	task := NewDetectionTask(time.Hour, checker, logrus.NewEntry(logger))

	assert.Equal(t, "background_detection", task.Name)
	err := task.RunFunc(context.Background())
	require.EqualError(t, err, "network")

	checker.result = exposure.Success()
	require.NoError(t, task.RunFunc(context.Background()))
	assert.Equal(t, int32(2), checker.calls.Load())
	assert.Empty(t, hook.AllEntries())
}

func TestSchedulerSkipsDisabledTasks(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	sched := NewScheduler(logrus.NewEntry(logger))
	sched.AddTask(NewDetectionTask(0, &stubChecker{}, logrus.NewEntry(logger)))
	assert.Zero(t, sched.Tasks())

	sched.Start(context.Background())
	sched.Stop()
}

func TestSchedulerRecordsTaskMetrics(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	metrics := NewMetrics(prometheus.NewRegistry())
	checker := &stubChecker{result: exposure.Failure("quota")}

	sched := NewScheduler(logrus.NewEntry(logger), WithMetrics(metrics))
	sched.AddTask(NewDetectionTask(time.Hour, checker, logrus.NewEntry(logger)))
	sched.Start(context.Background())
	sched.Start(context.Background())

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.runs.WithLabelValues("background_detection", "failure")) == 1
	}, time.Second, 5*time.Millisecond)
	sched.Stop()
	sched.Stop()

	assert.Equal(t, int32(1), checker.calls.Load(), "second Start must not launch the task again")
}
