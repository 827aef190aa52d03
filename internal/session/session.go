// Package session wires the token store, bridge, state, syncer, subscription
// manager, scheduler, HTTP server, and NATS relay into a single scoped
// service.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/exposure-sync/exposure-sync/internal/analytics"
	"github.com/exposure-sync/exposure-sync/internal/bridge"
	"github.com/exposure-sync/exposure-sync/internal/bridge/natsstan"
	"github.com/exposure-sync/exposure-sync/internal/config"
	"github.com/exposure-sync/exposure-sync/internal/exposure"
	"github.com/exposure-sync/exposure-sync/internal/scheduler"
	"github.com/exposure-sync/exposure-sync/internal/server"
	"github.com/exposure-sync/exposure-sync/internal/store"
	"github.com/exposure-sync/exposure-sync/internal/subscription"
	"github.com/exposure-sync/exposure-sync/internal/syncer"
)

const shutdownTimeout = 15 * time.Second

// Session owns every component for the lifetime of one foreground scope.
type Session struct {
	config    *config.Config
	registry  *prometheus.Registry
	store     store.Store
	local     *bridge.Local
	syncer    *syncer.Syncer
	consent   *analytics.ConsentTracker
	manager   *subscription.Manager
	scheduler *scheduler.Scheduler
	server    *server.Server
	relay     *natsstan.Relay
	logger    *logrus.Entry

	closeOnce sync.Once
}

// New creates and initialises the session:
//  1. Creates the token store (Redis, then Postgres, otherwise in-memory).
//  2. Creates the metrics registry and the local bridge.
//  3. Creates the state, syncer, and analytics tap.
//  4. Creates the subscription manager and scheduler.
//  5. Creates the HTTP server and NATS relay when configured.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (*Session, error) {
	log := logger.WithField("component", "session")

	// --- 1. Store ---
	st, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// --- 2. Registry and bridge ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	local := bridge.NewLocal(st, logger,
		bridge.WithDetectionLimit(cfg.Detection.MinInterval(), cfg.Detection.Burst),
		bridge.WithEventBuffer(cfg.Subscription.EventBuffer),
	)

	// --- 3. State, syncer, analytics ---
	sy := syncer.New(local, exposure.NewState(), logger, syncer.WithMetrics(syncer.NewMetrics(reg)))

	var (
		tracker analytics.Tracker = analytics.MultiTracker{}
		consent *analytics.ConsentTracker
	)
	if cfg.Analytics.Enabled {
		trackers := analytics.MultiTracker{analytics.NewPrometheusTracker(reg)}
		if cfg.Analytics.LogEvents {
			trackers = append(trackers, analytics.NewLogTracker(logger))
		}
		consent = analytics.NewConsentTracker(trackers, cfg.Analytics.Consent)
		tracker = consent
	} else {
		log.Info("analytics disabled")
	}
	tap := analytics.NewTap(tracker, logger)

	// --- 4. Manager and scheduler ---
	manager := subscription.NewManager(local, sy, tap, logger)

	sched := scheduler.NewScheduler(logger, scheduler.WithMetrics(scheduler.NewMetrics(reg)))
	sched.AddTask(scheduler.NewDetectionTask(cfg.Detection.Interval(), sy, logger))

	s := &Session{
		config:    cfg,
		registry:  reg,
		store:     st,
		local:     local,
		syncer:    sy,
		consent:   consent,
		manager:   manager,
		scheduler: sched,
		logger:    log,
	}

	// --- 5. Server and relay ---
	if cfg.Server.Enabled {
		var c server.Consent
		if consent != nil {
			c = consent
		}
		s.server = server.NewServer(cfg, sy, c, reg, logger)
	}
	if cfg.NATS.URL != "" {
		s.relay = natsstan.NewRelay(cfg.NATS.URL, cfg.NATS.ClusterID, cfg.NATS.ClientID,
			cfg.NATS.Subject, cfg.NATS.Durable, logger)
	}

	return s, nil
}

func newStore(ctx context.Context, cfg *config.Config, log *logrus.Entry) (store.Store, error) {
	switch {
	case cfg.Redis.URL != "":
		rs, err := store.NewRedisStore(cfg.Redis.URL, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
		if err != nil {
			return nil, fmt.Errorf("creating redis store: %w", err)
		}
		log.Info("using Redis store")
		return rs, nil
	case cfg.Postgres.DSN != "":
		ps, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		log.Info("using Postgres store")
		return ps, nil
	default:
		log.Info("using in-memory store")
		return store.NewMemoryStore(), nil
	}
}

// Syncer returns the sync orchestrator.
func (s *Session) Syncer() *syncer.Syncer { return s.syncer }

// Bridge returns the local bridge, which also accepts background detections.
func (s *Session) Bridge() *bridge.Local { return s.local }

// Registry returns the session's metrics registry.
func (s *Session) Registry() *prometheus.Registry { return s.registry }

// Consent returns the analytics consent tracker, or nil when analytics are
// disabled.
func (s *Session) Consent() *analytics.ConsentTracker { return s.consent }

// Run subscribes to push events, performs the initial refresh, starts the
// scheduler, HTTP server, and relay, then blocks until ctx is cancelled or
// the relay fails. On return every component has been torn down.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	s.manager.Start(ctx)
	s.syncer.RefreshExposureInfo(ctx)
	s.scheduler.Start(ctx)

	if s.server != nil {
		if err := s.server.Start(ctx); err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		s.server.SetReady(true)
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.relay != nil {
		g.Go(func() error {
			if err := s.relay.Run(gctx, s.local); err != nil {
				return fmt.Errorf("nats relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	s.logger.Info("session is ready")

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("shutting down session")
	return err
}

// Close releases subscriptions and stops every component. It is safe to
// call more than once and on a session that never ran.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.manager.Stop()

		if s.server != nil {
			s.server.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.server.Stop(shutdownCtx); err != nil {
				s.logger.WithError(err).Error("error during server shutdown")
			}
		}

		s.scheduler.Stop()
		s.local.Close()

		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("error closing store")
		}
	})
}
