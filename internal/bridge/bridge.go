// Package bridge defines the boundary to the external exposure-detection
// subsystem and an in-process implementation of it.
package bridge

//go:generate mockgen -source=bridge.go -destination=mocks/mocks.go -package=mocks Bridge,Subscription

import (
	"context"
	"errors"
	"time"

	"github.com/exposure-sync/exposure-sync/internal/exposure"
)

// ErrQuotaExceeded is wrapped by detection failures caused by the platform
// detection quota.
var ErrQuotaExceeded = errors.New("detection quota exceeded")

// Bridge is the capability set exposed by the external subsystem. All calls
// may block and may fail. Read failures are returned as errors here; the
// syncer resolves them to an empty list or absent timestamp.
type Bridge interface {
	// DetectNewExposures runs a detection pass against newly available
	// diagnosis keys. It does not return the resulting exposures.
	DetectNewExposures(ctx context.Context) error
	// GetCurrentExposures reads the subsystem's current exposure list.
	GetCurrentExposures(ctx context.Context) (exposure.Info, error)
	// FetchLastDetectionTimestamp returns nil if no pass has ever run.
	FetchLastDetectionTimestamp(ctx context.Context) (*exposure.Posix, error)
	// GetExposureKeys returns the device's own temporary exposure keys.
	GetExposureKeys(ctx context.Context) ([]exposure.Key, error)
	GetRevisionToken(ctx context.Context) (string, error)
	StoreRevisionToken(ctx context.Context, token string) error
	// SubscribeToExposureEvents registers a push listener. Each call returns
	// an independent subscription.
	SubscribeToExposureEvents() Subscription
}

// Event signals that the subsystem recorded new exposures on its own.
// It carries no exposure data; receivers re-pull.
type Event struct {
	ID string
	At time.Time
}

// Subscription is a live push listener.
type Subscription interface {
	ID() string
	// Events is closed once the subscription is released.
	Events() <-chan Event
	// Release stops delivery. Safe to call any number of times.
	Release()
}

// ExternalSubsystemError reports a failure inside the external subsystem.
// Error returns Message unchanged so it can be shown to users as is.
type ExternalSubsystemError struct {
	Op      string
	Message string
	Err     error
}

func (e *ExternalSubsystemError) Error() string {
	return e.Message
}

func (e *ExternalSubsystemError) Unwrap() error {
	return e.Err
}
