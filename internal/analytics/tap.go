package analytics

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/exposure-sync/exposure-sync/internal/bridge"
)

// Fixed telemetry pair emitted for every exposure push event.
const (
	CategoryEpiAnalytics       = "epi_analytics"
	ActionNotificationReceived = "en_notification_received"
)

// Tap is a stateless forwarder from push events to a Tracker.
type Tap struct {
	tracker Tracker
	logger  *logrus.Entry
}

// NewTap creates a tap emitting to tracker.
func NewTap(tracker Tracker, logger *logrus.Entry) *Tap {
	return &Tap{
		tracker: tracker,
		logger:  logger.WithField("component", "analytics_tap"),
	}
}

// OnExposureEvent emits the notification-received pair. A panicking
// tracker is logged and swallowed. Trackers take no context, so the call
// runs in its own goroutine and is abandoned once ctx is done.
func (t *Tap) OnExposureEvent(ctx context.Context, ev bridge.Event) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				t.logger.WithFields(logrus.Fields{
					"event_id": ev.ID,
					"panic":    r,
				}).Error("analytics tracker panicked")
			}
		}()
		t.tracker.TrackEvent(CategoryEpiAnalytics, ActionNotificationReceived)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.logger.WithField("event_id", ev.ID).Warn("abandoning blocked analytics tracker")
	}
}
