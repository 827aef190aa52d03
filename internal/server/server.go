// Package server exposes the exposure state and sync operations over HTTP,
// together with /metrics, /health, /ready, and /config endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/exposure-sync/exposure-sync/internal/config"
	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

// ExposureService is the consumer-facing surface of the sync layer.
type ExposureService interface {
	Snapshot() exposure.Snapshot
	RefreshExposureInfo(ctx context.Context)
	CheckForNewExposures(ctx context.Context) exposure.Result
	GetExposureKeys(ctx context.Context) ([]exposure.Key, error)
	GetRevisionToken(ctx context.Context) (string, error)
	StoreRevisionToken(ctx context.Context, token string) error
}

// Consent reads and updates the user's product-analytics consent.
type Consent interface {
	Consented() bool
	UpdateUserConsent(consented bool)
}

// Server is the HTTP server for the exposure API and operational endpoints.
type Server struct {
	httpServer *http.Server
	service    ExposureService
	consent    Consent
	config     *config.Config
	ready      atomic.Bool
	logger     *logrus.Entry

	// background refreshes started by handleRefresh; Stop cancels and waits.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewServer creates a new HTTP server configured from cfg. consent may be nil
// when analytics are disabled; gatherer backs the /metrics endpoint.
func NewServer(cfg *config.Config, service ExposureService, consent Consent, gatherer prometheus.Gatherer, logger *logrus.Entry) *Server {
	s := &Server{
		service: service,
		consent: consent,
		config:  cfg,
		logger:  logger.WithField("component", "server"),
	}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())

	r := mux.NewRouter()

	// --- Exposure API ---
	r.HandleFunc("/api/exposures", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/exposures/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/exposures/check", s.handleCheck).Methods(http.MethodPost)
	r.HandleFunc("/api/exposure-keys", s.handleExposureKeys).Methods(http.MethodGet)
	r.HandleFunc("/api/revision-token", s.handleGetRevisionToken).Methods(http.MethodGet)
	r.HandleFunc("/api/revision-token", s.handlePutRevisionToken).Methods(http.MethodPut)
	r.HandleFunc("/api/analytics/consent", s.handleGetConsent).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/consent", s.handlePutConsent).Methods(http.MethodPut)

	// --- Prometheus metrics ---
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// --- Health / readiness ---
	r.HandleFunc("/health", s.handleHealth)
	r.HandleFunc("/ready", s.handleReady)

	// --- Config (redacted) ---
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)

	// --- pprof ---
	if cfg.Server.EnablePprof {
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
		s.logger.Info("pprof endpoints enabled under /debug/pprof/")
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving HTTP in a background goroutine and returns once the
// listener has had a moment to bind.
func (s *Server) Start(_ context.Context) error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-time.After(100 * time.Millisecond):
	}

	return nil
}

// Stop performs a graceful shutdown of the HTTP server, then cancels and
// waits for background refreshes. The provided context controls the maximum
// time to wait for in-flight requests to complete.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.bgCancel()

	done := make(chan struct{})
	go func() {
		s.bgWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("background refreshes still running at shutdown deadline")
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// SetReady updates the readiness state exposed by the /ready endpoint.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// --- HTTP handlers ---

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleRefresh starts a refresh that outlives the request and answers at
// once. The refresh is bound to the server's lifetime, not the request's.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.service.RefreshExposureInfo(s.bgCtx)
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	res := s.service.CheckForNewExposures(r.Context())
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleExposureKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.service.GetExposureKeys(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, keys)
}

type revisionTokenBody struct {
	RevisionToken string `json:"revision_token"`
}

func (s *Server) handleGetRevisionToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.service.GetRevisionToken(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, revisionTokenBody{RevisionToken: token})
}

func (s *Server) handlePutRevisionToken(w http.ResponseWriter, r *http.Request) {
	var body revisionTokenBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding body: %w", err))
		return
	}
	if err := s.service.StoreRevisionToken(r.Context(), body.RevisionToken); err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type consentBody struct {
	Consented bool `json:"consented"`
}

func (s *Server) handleGetConsent(w http.ResponseWriter, _ *http.Request) {
	if s.consent == nil {
		http.Error(w, "analytics disabled", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, consentBody{Consented: s.consent.Consented()})
}

func (s *Server) handlePutConsent(w http.ResponseWriter, r *http.Request) {
	if s.consent == nil {
		http.Error(w, "analytics disabled", http.StatusNotFound)
		return
	}
	var body consentBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding body: %w", err))
		return
	}
	s.consent.UpdateUserConsent(body.Consented)
	s.logger.WithField("consented", body.Consented).Info("analytics consent updated")
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not_ready"}`))
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	data, err := s.config.RedactedJSON()
	if err != nil {
		s.logger.WithError(err).Error("failed to encode config")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.WithError(err).WithField("status", status).Warn("request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
