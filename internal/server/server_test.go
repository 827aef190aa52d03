package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exposure-sync/exposure-sync/internal/analytics"
	"github.com/exposure-sync/exposure-sync/internal/config"
	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

type fakeService struct {
	mu        sync.Mutex
	snapshot  exposure.Snapshot
	result    exposure.Result
	keys      []exposure.Key
	token     string
	tokenErr  error
	refreshes atomic.Int32
	// blockRefresh holds RefreshExposureInfo until its context is done.
	blockRefresh bool
}

func (f *fakeService) Snapshot() exposure.Snapshot { return f.snapshot }

func (f *fakeService) RefreshExposureInfo(ctx context.Context) {
	if f.blockRefresh {
		<-ctx.Done()
	}
	f.refreshes.Add(1)
}

func (f *fakeService) CheckForNewExposures(context.Context) exposure.Result { return f.result }

func (f *fakeService) GetExposureKeys(context.Context) ([]exposure.Key, error) { return f.keys, nil }

func (f *fakeService) GetRevisionToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.tokenErr
}

func (f *fakeService) StoreRevisionToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenErr != nil {
		return f.tokenErr
	}
	f.token = token
	return nil
}

func newTestServer(t *testing.T, svc *fakeService, consent Consent) *Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Redis.URL = "redis://:secret@localhost:6379"
	logger, _ := logtest.NewNullLogger()
	return NewServer(cfg, svc, consent, prometheus.NewRegistry(), logrus.NewEntry(logger))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleSnapshot(t *testing.T) {
	svc := &fakeService{snapshot: exposure.Snapshot{
		Info:          exposure.Info{{ID: "e1", Date: 1699990000}},
		LastDetection: exposure.Posix(1700000000).Ptr(),
		Version:       3,
	}}
	s := newTestServer(t, svc, nil)

	w := do(t, s, http.MethodGet, "/api/exposures", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"exposure_info":[{"id":"e1","date":1699990000}],
		"last_exposure_detection_date":1700000000,
		"version":3
	}`, w.Body.String())
}

func TestHandleCheck(t *testing.T) {
	tests := []struct {
		name     string
		result   exposure.Result
		wantCode int
		wantBody string
	}{
		{
			name:     "success",
			result:   exposure.Success(),
			wantCode: http.StatusOK,
			wantBody: `{"kind":"success"}`,
		},
		{
			name:     "failure carries message",
			result:   exposure.Failure("network"),
			wantCode: http.StatusBadGateway,
			wantBody: `{"kind":"failure","error":"network"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeService{result: tt.result}, nil)
			w := do(t, s, http.MethodPost, "/api/exposures/check", "")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestHandleRefreshIsFireAndForget(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	w := do(t, s, http.MethodPost, "/api/exposures/refresh", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Eventually(t, func() bool { return svc.refreshes.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRevisionTokenEndpoints(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	w := do(t, s, http.MethodPut, "/api/revision-token", `{"revision_token":"rev-7"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/api/revision-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"revision_token":"rev-7"}`, w.Body.String())

	w = do(t, s, http.MethodPut, "/api/revision-token", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.tokenErr = errors.New("store offline")
	w = do(t, s, http.MethodGet, "/api/revision-token", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"store offline"}`, w.Body.String())
}

func TestHandleExposureKeys(t *testing.T) {
	svc := &fakeService{keys: []exposure.Key{{KeyData: "k1", RollingStartNumber: 100, RollingPeriod: 144, TransmissionRisk: 2}}}
	s := newTestServer(t, svc, nil)

	w := do(t, s, http.MethodGet, "/api/exposure-keys", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"key":"k1","rollingStartNumber":100,"rollingPeriod":144,"transmissionRisk":2}]`, w.Body.String())
}

func TestConsentEndpoints(t *testing.T) {
	t.Run("disabled analytics", func(t *testing.T) {
		s := newTestServer(t, &fakeService{}, nil)
		assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/analytics/consent", "").Code)
	})

	t.Run("update consent", func(t *testing.T) {
		consent := analytics.NewConsentTracker(analytics.MultiTracker{}, false)
		s := newTestServer(t, &fakeService{}, consent)

		w := do(t, s, http.MethodPut, "/api/analytics/consent", `{"consented":true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, consent.Consented())

		w = do(t, s, http.MethodGet, "/api/analytics/consent", "")
		assert.JSONEq(t, `{"consented":true}`, w.Body.String())
	})
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/ready", "").Code)
	s.SetReady(true)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/ready", "").Code)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/metrics", "").Code)

	w := do(t, s, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cfg config.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "****", cfg.Redis.URL)
}

func TestMethodNotAllowed(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/exposures/check"},
		{http.MethodGet, "/api/exposures/refresh"},
		{http.MethodPost, "/api/exposures"},
		{http.MethodDelete, "/api/revision-token"},
		{http.MethodPost, "/api/analytics/consent"},
	}

	s := newTestServer(t, &fakeService{}, nil)
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, tt.method, tt.path, "").Code)
		})
	}
}

func TestStopWaitsForBackgroundRefresh(t *testing.T) {
	svc := &fakeService{blockRefresh: true}
	s := newTestServer(t, svc, nil)

	w := do(t, s, http.MethodPost, "/api/exposures/refresh", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Zero(t, svc.refreshes.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.Equal(t, int32(1), svc.refreshes.Load(), "refresh must finish before Stop returns")
}
