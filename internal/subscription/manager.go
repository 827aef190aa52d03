// Package subscription owns the push-event subscriptions of a session: one
// that re-pulls exposure state and one that feeds analytics.
package subscription

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/exposure-sync/exposure-sync/internal/bridge"
)

// Refresher re-pulls exposure state into the state store.
type Refresher interface {
	RefreshExposureInfo(ctx context.Context)
}

// EventObserver is notified of push events for telemetry.
type EventObserver interface {
	OnExposureEvent(ctx context.Context, ev bridge.Event)
}

// Manager keeps exactly one subscription per concern while started.
type Manager struct {
	bridge    bridge.Bridge
	refresher Refresher
	observer  EventObserver
	logger    *logrus.Entry

	mu     sync.Mutex
	subs   []bridge.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a stopped manager.
func NewManager(b bridge.Bridge, refresher Refresher, observer EventObserver, logger *logrus.Entry) *Manager {
	return &Manager{
		bridge:    b,
		refresher: refresher,
		observer:  observer,
		logger:    logger.WithField("component", "subscriptions"),
	}
}

// Start subscribes once per concern and starts a consumer for each. Calling
// Start on a started manager releases the previous subscriptions first.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	ctx, m.cancel = context.WithCancel(ctx)

	refreshSub := m.bridge.SubscribeToExposureEvents()
	analyticsSub := m.bridge.SubscribeToExposureEvents()
	m.subs = []bridge.Subscription{refreshSub, analyticsSub}

	m.consume(ctx, "exposure_refresh", refreshSub, func(ctx context.Context, _ bridge.Event) {
		m.refresher.RefreshExposureInfo(ctx)
	})
	m.consume(ctx, "analytics", analyticsSub, m.observer.OnExposureEvent)

	m.logger.Info("exposure event subscriptions started")
}

// Stop releases all subscriptions and waits for the consumers to return.
// It is safe to call on a stopped manager.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Running reports whether subscriptions are currently held.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Manager) stopLocked() {
	if m.cancel == nil {
		return
	}

	for _, s := range m.subs {
		s.Release()
	}
	m.cancel()
	m.wg.Wait()
	m.subs = nil
	m.cancel = nil

	m.logger.Info("exposure event subscriptions released")
}

// consume handles events from sub one at a time until the subscription is
// released or ctx is cancelled. Handler panics are logged and skipped.
func (m *Manager) consume(ctx context.Context, concern string, sub bridge.Subscription, handle func(context.Context, bridge.Event)) {
	log := m.logger.WithFields(logrus.Fields{
		"concern":      concern,
		"subscription": sub.ID(),
	})
	events := sub.Events()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				log.WithField("event_id", ev.ID).Debug("exposure event received")
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.WithField("panic", r).Error("exposure event handler panicked")
						}
					}()
					handle(ctx, ev)
				}()
			}
		}
	}()
}
