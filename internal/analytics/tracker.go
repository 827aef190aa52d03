// Package analytics observes exposure push events for product telemetry.
// Nothing in here may influence exposure sync correctness.
package analytics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Tracker records a (category, action) telemetry pair.
type Tracker interface {
	TrackEvent(category, action string)
}

// PrometheusTracker counts tracked events by category and action.
type PrometheusTracker struct {
	events *prometheus.CounterVec
}

// NewPrometheusTracker registers its counter with reg.
func NewPrometheusTracker(reg prometheus.Registerer) *PrometheusTracker {
	return &PrometheusTracker{
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "exposure_sync_analytics_events_total",
			Help: "Product analytics events tracked, by category and action.",
		}, []string{"category", "action"}),
	}
}

func (t *PrometheusTracker) TrackEvent(category, action string) {
	t.events.WithLabelValues(category, action).Inc()
}

// LogTracker writes every tracked event to the log at info level.
type LogTracker struct {
	logger *logrus.Entry
}

func NewLogTracker(logger *logrus.Entry) *LogTracker {
	return &LogTracker{logger: logger.WithField("component", "analytics")}
}

func (t *LogTracker) TrackEvent(category, action string) {
	t.logger.WithFields(logrus.Fields{
		"category": category,
		"action":   action,
	}).Info("analytics event")
}

// ConsentTracker forwards events only while the user has consented to
// product analytics.
type ConsentTracker struct {
	next      Tracker
	consented atomic.Bool
}

// NewConsentTracker wraps next with the given initial consent.
func NewConsentTracker(next Tracker, consented bool) *ConsentTracker {
	t := &ConsentTracker{next: next}
	t.consented.Store(consented)
	return t
}

// UpdateUserConsent records the user's latest answer.
func (t *ConsentTracker) UpdateUserConsent(consented bool) {
	t.consented.Store(consented)
}

// Consented reports whether events are currently forwarded.
func (t *ConsentTracker) Consented() bool {
	return t.consented.Load()
}

func (t *ConsentTracker) TrackEvent(category, action string) {
	if !t.consented.Load() {
		return
	}
	t.next.TrackEvent(category, action)
}

// MultiTracker fans an event out to several trackers in order.
type MultiTracker []Tracker

func (m MultiTracker) TrackEvent(category, action string) {
	for _, t := range m {
		t.TrackEvent(category, action)
	}
}
