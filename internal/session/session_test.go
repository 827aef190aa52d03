package session

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exposure-sync/exposure-sync/internal/config"
	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.Enabled = false
	cfg.Detection.IntervalSeconds = 0
	return cfg
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestRunRefreshesOnPushAndTearsDown(t *testing.T) {
	cfg := testConfig()
	cfg.Analytics.Consent = true

	s, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Bridge().Subscriptions() == 2
	}, 2*time.Second, 5*time.Millisecond)

	s.Bridge().Ingest(exposure.Info{{ID: "e1", Date: 1699990000}}, 1700000000)

	require.Eventually(t, func() bool {
		snap := s.Syncer().Snapshot()
		return len(snap.Info) == 1 && snap.LastDetection != nil
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(s.Registry(), "exposure_sync_analytics_events_total")
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Zero(t, s.Bridge().Subscriptions())
	assert.NotPanics(t, s.Close)
}

func TestCheckRespectsDetectionQuota(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.MinIntervalSeconds = 3600
	cfg.Detection.Burst = 1

	s, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer s.Close()

	first := s.Syncer().CheckForNewExposures(context.Background())
	assert.True(t, first.OK())
	assert.Equal(t, uint64(1), s.Syncer().Snapshot().Version)

	second := s.Syncer().CheckForNewExposures(context.Background())
	assert.Equal(t, exposure.Failure("detection quota exceeded"), second)
	assert.Equal(t, uint64(1), s.Syncer().Snapshot().Version)
}

func TestAnalyticsToggle(t *testing.T) {
	cfg := testConfig()
	s, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.Consent())
	assert.False(t, s.Consent().Consented())

	cfg = testConfig()
	cfg.Analytics.Enabled = false
	s2, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer s2.Close()
	assert.Nil(t, s2.Consent())
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.URL = "not-a-url"

	_, err := New(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating redis store")
}

func TestCloseWithoutRun(t *testing.T) {
	s, err := New(context.Background(), testConfig(), testLogger())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		s.Close()
		s.Close()
	})
}
