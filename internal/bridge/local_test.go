package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exposure-sync/exposure-sync/internal/exposure"
	"github.com/exposure-sync/exposure-sync/internal/store"
)

func newTestLocal(t *testing.T, opts ...LocalOption) (*Local, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewLocal(store.NewMemoryStore(), logrus.NewEntry(logger), opts...), hook
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestLocalStartsEmpty(t *testing.T) {
	l, _ := newTestLocal(t)
	ctx := context.Background()

	info, err := l.GetCurrentExposures(ctx)
	require.NoError(t, err)
	assert.Empty(t, info)

	ts, err := l.FetchLastDetectionTimestamp(ctx)
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestLocalDetectNewExposures(t *testing.T) {
	calls := 0
	detector := DetectorFunc(func(context.Context) (exposure.Info, error) {
		calls++
		if calls == 1 {
			return exposure.Info{{ID: "e1"}, {ID: "e2"}}, nil
		}
		return exposure.Info{{ID: "e3"}, {ID: "e1"}}, nil
	})
	l, _ := newTestLocal(t, WithDetector(detector), WithClock(fixedClock(1700000000)))
	ctx := context.Background()

	require.NoError(t, l.DetectNewExposures(ctx))
	require.NoError(t, l.DetectNewExposures(ctx))

	info, err := l.GetCurrentExposures(ctx)
	require.NoError(t, err)
	assert.Equal(t, exposure.Info{{ID: "e3"}, {ID: "e1"}, {ID: "e2"}}, info)

	ts, err := l.FetchLastDetectionTimestamp(ctx)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, exposure.Posix(1700000000), *ts)
}

func TestLocalDetectFailureKeepsMessage(t *testing.T) {
	l, _ := newTestLocal(t, WithDetector(DetectorFunc(func(context.Context) (exposure.Info, error) {
		return nil, errors.New("network")
	})))

	err := l.DetectNewExposures(context.Background())
	require.Error(t, err)
	assert.Equal(t, "network", err.Error())

	var subsystemErr *ExternalSubsystemError
	require.ErrorAs(t, err, &subsystemErr)
	assert.Equal(t, "detect", subsystemErr.Op)

	ts, err := l.FetchLastDetectionTimestamp(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestLocalDetectionQuota(t *testing.T) {
	l, hook := newTestLocal(t, WithDetectionLimit(time.Hour, 1))
	ctx := context.Background()

	require.NoError(t, l.DetectNewExposures(ctx))

	err := l.DetectNewExposures(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, "detection quota exceeded", err.Error())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestLocalIngestNotifiesEverySubscription(t *testing.T) {
	l, _ := newTestLocal(t)
	a := l.SubscribeToExposureEvents()
	b := l.SubscribeToExposureEvents()
	defer a.Release()
	defer b.Release()
	assert.NotEqual(t, a.ID(), b.ID())

	l.Ingest(exposure.Info{{ID: "e3"}}, 1700000100)

	for _, sub := range []Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			assert.NotEmpty(t, ev.ID)
		case <-time.After(time.Second):
			t.Fatal("expected an event")
		}
		select {
		case ev := <-sub.Events():
			t.Fatalf("unexpected second event %s", ev.ID)
		default:
		}
	}

	info, err := l.GetCurrentExposures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exposure.Info{{ID: "e3"}}, info)

	ts, err := l.FetchLastDetectionTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exposure.Posix(1700000100), *ts)
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	l, _ := newTestLocal(t)
	sub := l.SubscribeToExposureEvents()
	require.Equal(t, 1, l.Subscriptions())

	sub.Release()
	sub.Release()
	assert.Equal(t, 0, l.Subscriptions())

	_, open := <-sub.Events()
	assert.False(t, open, "events channel should be closed after release")

	assert.NotPanics(t, func() { l.Ingest(nil, 1) })
}

func TestLocalCloseReleasesAll(t *testing.T) {
	l, _ := newTestLocal(t)
	l.SubscribeToExposureEvents()
	l.SubscribeToExposureEvents()

	l.Close()
	assert.Equal(t, 0, l.Subscriptions())
}

func TestLocalFullBufferDropsEvent(t *testing.T) {
	l, hook := newTestLocal(t, WithEventBuffer(1))
	sub := l.SubscribeToExposureEvents()
	defer sub.Release()

	l.Ingest(nil, 1)
	l.Ingest(nil, 2)

	assert.Len(t, sub.Events(), 1)
	var dropped int
	for _, e := range hook.AllEntries() {
		if e.Message == "subscription buffer full, dropping exposure event" {
			dropped++
		}
	}
	assert.Equal(t, 1, dropped)
}

func TestLocalRevisionToken(t *testing.T) {
	l, _ := newTestLocal(t)
	ctx := context.Background()

	token, err := l.GetRevisionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, l.StoreRevisionToken(ctx, "rev-1"))

	token, err = l.GetRevisionToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rev-1", token)
}

func TestLocalExposureKeysAreCopied(t *testing.T) {
	key := exposure.Key{KeyData: "abc", RollingStartNumber: 2650000, RollingPeriod: 144, TransmissionRisk: 1}
	l, _ := newTestLocal(t, WithExposureKeys(key))

	keys, err := l.GetExposureKeys(context.Background())
	require.NoError(t, err)
	require.Equal(t, []exposure.Key{key}, keys)

	keys[0].KeyData = "changed"
	again, err := l.GetExposureKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", again[0].KeyData)
}
