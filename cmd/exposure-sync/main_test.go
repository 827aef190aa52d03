package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exposure-sync/exposure-sync/internal/config"
)

func TestRunCheckReportsStoreAndResult(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Detection.IntervalSeconds = 0
	cfg.NATS.URL = "nats://localhost:4222"

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var out bytes.Buffer
	res, err := runCheck(context.Background(), cfg, logrus.NewEntry(logger), &out)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.False(t, cfg.Server.Enabled)
	assert.Empty(t, cfg.NATS.URL, "check never starts the relay")

	var report checkReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "memory", report.Store)
	assert.Empty(t, report.RevisionToken)
	assert.True(t, report.Result.OK())
	assert.Empty(t, report.Snapshot.Info)
	require.NotNil(t, report.Snapshot.LastDetection)
}

func TestStoreBackend(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "memory", storeBackend(cfg))
	cfg.Postgres.DSN = "postgres://localhost/db"
	assert.Equal(t, "postgres", storeBackend(cfg))
	cfg.Redis.URL = "redis://localhost:6379"
	assert.Equal(t, "redis", storeBackend(cfg))
}
