package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/exposure-sync/exposure-sync/internal/exposure"
	"github.com/exposure-sync/exposure-sync/internal/store"
)

// RevisionTokenKey is the store key the revision token lives under.
const RevisionTokenKey = "revision_token"

const defaultEventBuffer = 16

// Detector performs the key matching of one detection pass and returns the
// exposures it found, most relevant first.
type Detector interface {
	Detect(ctx context.Context) (exposure.Info, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context) (exposure.Info, error)

func (f DetectorFunc) Detect(ctx context.Context) (exposure.Info, error) {
	return f(ctx)
}

// Local is an in-process exposure-detection subsystem. Detection passes are
// throttled by a token bucket; background results arrive through Ingest and
// are announced to every live subscription.
type Local struct {
	mu            sync.RWMutex
	exposures     exposure.Info
	lastDetection *exposure.Posix
	keys          []exposure.Key

	subMu sync.RWMutex
	subs  map[string]*localSubscription

	tokens      store.Store
	detector    Detector
	limiter     *rate.Limiter
	eventBuffer int
	now         func() time.Time
	logger      *logrus.Entry
}

// LocalOption configures a Local bridge.
type LocalOption func(*Local)

// WithDetector sets the matcher used by DetectNewExposures.
func WithDetector(d Detector) LocalOption {
	return func(l *Local) { l.detector = d }
}

// WithDetectionLimit allows one detection pass per every, with the given
// burst. A zero every disables throttling.
func WithDetectionLimit(every time.Duration, burst int) LocalOption {
	return func(l *Local) {
		if every <= 0 {
			l.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// WithEventBuffer sets the per-subscription event buffer size.
func WithEventBuffer(n int) LocalOption {
	return func(l *Local) {
		if n > 0 {
			l.eventBuffer = n
		}
	}
}

// WithExposureKeys seeds the keys returned by GetExposureKeys.
func WithExposureKeys(keys ...exposure.Key) LocalOption {
	return func(l *Local) { l.keys = append([]exposure.Key(nil), keys...) }
}

// WithClock overrides the time source used for detection timestamps.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

// NewLocal creates a Local bridge persisting its revision token in tokens.
func NewLocal(tokens store.Store, logger *logrus.Entry, opts ...LocalOption) *Local {
	l := &Local{
		exposures:   exposure.Info{},
		subs:        make(map[string]*localSubscription),
		tokens:      tokens,
		detector:    DetectorFunc(func(context.Context) (exposure.Info, error) { return nil, nil }),
		limiter:     rate.NewLimiter(rate.Inf, 0),
		eventBuffer: defaultEventBuffer,
		now:         time.Now,
		logger:      logger.WithField("component", "bridge"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DetectNewExposures runs one detection pass. Found exposures become visible
// through GetCurrentExposures; no push event is sent for explicit passes.
func (l *Local) DetectNewExposures(ctx context.Context) error {
	if !l.limiter.Allow() {
		l.logger.Warn("detection pass rejected by quota")
		return &ExternalSubsystemError{Op: "detect", Message: ErrQuotaExceeded.Error(), Err: ErrQuotaExceeded}
	}

	found, err := l.detector.Detect(ctx)
	if err != nil {
		return &ExternalSubsystemError{Op: "detect", Message: err.Error(), Err: err}
	}

	added := l.record(found, exposure.Posix(l.now().Unix()))
	l.logger.WithField("new_exposures", added).Debug("detection pass completed")
	return nil
}

// Ingest records the outcome of a detection pass that ran outside any
// explicit request and notifies all subscriptions.
func (l *Local) Ingest(found exposure.Info, detectedAt exposure.Posix) {
	added := l.record(found, detectedAt)
	l.logger.WithFields(logrus.Fields{
		"new_exposures": added,
		"detected_at":   detectedAt,
	}).Info("background detection recorded")
	l.notify()
}

// record prepends unseen exposures and stamps the detection time.
func (l *Local) record(found exposure.Info, at exposure.Posix) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{}, len(l.exposures))
	for _, e := range l.exposures {
		seen[e.ID] = struct{}{}
	}
	fresh := make(exposure.Info, 0, len(found))
	for _, e := range found {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		fresh = append(fresh, e)
	}

	l.exposures = append(fresh, l.exposures...)
	l.lastDetection = at.Ptr()
	return len(fresh)
}

func (l *Local) GetCurrentExposures(_ context.Context) (exposure.Info, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.exposures.Clone(), nil
}

func (l *Local) FetchLastDetectionTimestamp(_ context.Context) (*exposure.Posix, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.lastDetection == nil {
		return nil, nil
	}
	return l.lastDetection.Ptr(), nil
}

func (l *Local) GetExposureKeys(_ context.Context) ([]exposure.Key, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]exposure.Key, len(l.keys))
	copy(out, l.keys)
	return out, nil
}

func (l *Local) GetRevisionToken(ctx context.Context) (string, error) {
	token, err := l.tokens.Get(ctx, RevisionTokenKey)
	if err != nil {
		return "", &ExternalSubsystemError{Op: "get_revision_token", Message: err.Error(), Err: err}
	}
	return token, nil
}

func (l *Local) StoreRevisionToken(ctx context.Context, token string) error {
	if err := l.tokens.Set(ctx, RevisionTokenKey, token); err != nil {
		return &ExternalSubsystemError{Op: "store_revision_token", Message: err.Error(), Err: err}
	}
	return nil
}

// SubscribeToExposureEvents registers a new buffered listener.
func (l *Local) SubscribeToExposureEvents() Subscription {
	sub := &localSubscription{
		id:    uuid.NewString(),
		ch:    make(chan Event, l.eventBuffer),
		owner: l,
	}

	l.subMu.Lock()
	l.subs[sub.id] = sub
	l.subMu.Unlock()

	l.logger.WithField("subscription", sub.id).Debug("subscription added")
	return sub
}

// Subscriptions returns the number of live subscriptions.
func (l *Local) Subscriptions() int {
	l.subMu.RLock()
	defer l.subMu.RUnlock()
	return len(l.subs)
}

// Close releases every live subscription.
func (l *Local) Close() {
	l.subMu.RLock()
	subs := make([]*localSubscription, 0, len(l.subs))
	for _, s := range l.subs {
		subs = append(subs, s)
	}
	l.subMu.RUnlock()

	for _, s := range subs {
		s.Release()
	}
}

// notify sends one event to every subscription without blocking. A full
// buffer drops the event for that subscription only.
func (l *Local) notify() {
	ev := Event{ID: uuid.NewString(), At: l.now()}

	l.subMu.RLock()
	defer l.subMu.RUnlock()
	for id, s := range l.subs {
		select {
		case s.ch <- ev:
		default:
			l.logger.WithFields(logrus.Fields{
				"subscription": id,
				"event_id":     ev.ID,
			}).Warn("subscription buffer full, dropping exposure event")
		}
	}
}

func (l *Local) remove(s *localSubscription) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	delete(l.subs, s.id)
	close(s.ch)
	l.logger.WithField("subscription", s.id).Debug("subscription released")
}

type localSubscription struct {
	id    string
	ch    chan Event
	once  sync.Once
	owner *Local
}

func (s *localSubscription) ID() string { return s.id }

func (s *localSubscription) Events() <-chan Event { return s.ch }

func (s *localSubscription) Release() {
	s.once.Do(func() { s.owner.remove(s) })
}

var _ Bridge = (*Local)(nil)
