// Package syncer keeps the exposure state store in step with the external
// exposure-detection subsystem.
package syncer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/exposure-sync/exposure-sync/internal/bridge"
	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

// Syncer exposes the pull and check-and-pull operations over a bridge and is
// the sole writer of the state store. Concurrent calls are not serialised;
// the last Replace to land wins.
type Syncer struct {
	bridge  bridge.Bridge
	state   *exposure.State
	metrics *Metrics
	logger  *logrus.Entry
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithMetrics enables metric recording.
func WithMetrics(m *Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// New creates a Syncer writing to state.
func New(b bridge.Bridge, state *exposure.State, logger *logrus.Entry, opts ...Option) *Syncer {
	s := &Syncer{
		bridge: b,
		state:  state,
		logger: logger.WithField("component", "syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current exposure view.
func (s *Syncer) Snapshot() exposure.Snapshot {
	return s.state.Read()
}

// RefreshExposureInfo pulls the exposure list and the last detection
// timestamp and stores both in one Replace.
//
// The bridge reports read failures as errors; they are resolved here to an
// empty list or an absent timestamp so callers never block on a transient
// read glitch. Callers cannot tell "no exposures" from "could not read".
func (s *Syncer) RefreshExposureInfo(ctx context.Context) {
	start := time.Now()

	info, err := s.bridge.GetCurrentExposures(ctx)
	if err != nil {
		s.readFailed("get_current_exposures", err)
		info = exposure.Info{}
	}

	last, err := s.bridge.FetchLastDetectionTimestamp(ctx)
	if err != nil {
		s.readFailed("fetch_last_detection_timestamp", err)
		last = nil
	}

	s.state.Replace(info, last)

	if s.metrics != nil {
		s.metrics.refreshes.Inc()
		s.metrics.exposures.Set(float64(len(info)))
	}
	s.logger.WithFields(logrus.Fields{
		"exposures": len(info),
		"duration":  time.Since(start).Round(time.Millisecond),
	}).Debug("exposure info refreshed")
}

// CheckForNewExposures asks the subsystem to run a detection pass and, only
// if it succeeds, refreshes the store. A failed pass leaves the store as it
// was and returns the subsystem's message.
func (s *Syncer) CheckForNewExposures(ctx context.Context) exposure.Result {
	if err := s.bridge.DetectNewExposures(ctx); err != nil {
		s.logger.WithError(err).Warn("exposure detection failed")
		s.countCheck(exposure.KindFailure)
		return exposure.Failure(err.Error())
	}

	s.RefreshExposureInfo(ctx)
	s.countCheck(exposure.KindSuccess)
	return exposure.Success()
}

// GetCurrentExposures reads straight from the bridge without touching the store.
func (s *Syncer) GetCurrentExposures(ctx context.Context) (exposure.Info, error) {
	return s.bridge.GetCurrentExposures(ctx)
}

func (s *Syncer) GetExposureKeys(ctx context.Context) ([]exposure.Key, error) {
	return s.bridge.GetExposureKeys(ctx)
}

func (s *Syncer) GetRevisionToken(ctx context.Context) (string, error) {
	return s.bridge.GetRevisionToken(ctx)
}

func (s *Syncer) StoreRevisionToken(ctx context.Context, token string) error {
	return s.bridge.StoreRevisionToken(ctx, token)
}

func (s *Syncer) readFailed(op string, err error) {
	s.logger.WithError(err).WithField("op", op).Warn("bridge read failed, using empty value")
	if s.metrics != nil {
		s.metrics.readFailures.WithLabelValues(op).Inc()
	}
}

func (s *Syncer) countCheck(kind exposure.ResultKind) {
	if s.metrics != nil {
		s.metrics.checks.WithLabelValues(string(kind)).Inc()
	}
}
