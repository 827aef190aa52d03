// Package natsstan relays background detection results published on a NATS
// Streaming subject into the local bridge.
package natsstan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stan "github.com/nats-io/stan.go"
	"github.com/sirupsen/logrus"

	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

// ErrInvalidBatch marks payloads that can never be processed.
var ErrInvalidBatch = errors.New("invalid detection batch")

// Batch is the wire format of one background detection pass.
type Batch struct {
	Exposures  exposure.Info  `json:"exposures"`
	DetectedAt exposure.Posix `json:"detected_at"`
}

// Sink receives decoded batches.
type Sink interface {
	Ingest(found exposure.Info, detectedAt exposure.Posix)
}

// Decode parses and validates a batch payload.
func Decode(raw []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	if b.DetectedAt <= 0 {
		return Batch{}, fmt.Errorf("%w: missing detected_at", ErrInvalidBatch)
	}
	for i, e := range b.Exposures {
		if e.ID == "" {
			return Batch{}, fmt.Errorf("%w: exposure %d has no id", ErrInvalidBatch, i)
		}
	}
	return b, nil
}

// Relay subscribes to Subject and forwards every valid batch to a Sink.
type Relay struct {
	ClusterID string
	ClientID  string
	URL       string
	Subject   string
	Durable   string

	logger *logrus.Entry
}

// NewRelay creates a relay; an empty clientID gets a random one.
func NewRelay(url, clusterID, clientID, subject, durable string, logger *logrus.Entry) *Relay {
	if clientID == "" {
		clientID = "exposure-sync-" + uuid.NewString()
	}
	return &Relay{
		ClusterID: clusterID,
		ClientID:  clientID,
		URL:       url,
		Subject:   subject,
		Durable:   durable,
		logger:    logger.WithField("component", "nats_relay"),
	}
}

// Handle decodes one message and hands it to sink.
func (r *Relay) Handle(raw []byte, sink Sink) error {
	b, err := Decode(raw)
	if err != nil {
		r.logger.WithError(err).Warn("dropping undecodable detection batch")
		return err
	}
	sink.Ingest(b.Exposures, b.DetectedAt)
	return nil
}

// Run connects, subscribes and blocks until ctx is done.
func (r *Relay) Run(ctx context.Context, sink Sink) error {
	sc, err := stan.Connect(r.ClusterID, r.ClientID, stan.NatsURL(r.URL))
	if err != nil {
		return fmt.Errorf("connecting to nats streaming: %w", err)
	}
	defer sc.Close()

	sub, err := sc.Subscribe(r.Subject, func(m *stan.Msg) {
		// Undecodable batches are acked too; redelivery cannot fix them.
		_ = r.Handle(m.Data, sink)
		if err := m.Ack(); err != nil {
			r.logger.WithError(err).Warn("ack failed")
		}
	}, stan.DurableName(r.Durable), stan.SetManualAckMode(), stan.AckWait(10*time.Second), stan.DeliverAllAvailable())
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.Subject, err)
	}
	defer sub.Close()

	r.logger.WithFields(logrus.Fields{
		"subject": r.Subject,
		"client":  r.ClientID,
	}).Info("relaying background detections")

	<-ctx.Done()
	return nil
}
