package exposure

import "sync"

// Snapshot is a consistent view of the state store. Info and LastDetection
// always come from the same Replace call.
type Snapshot struct {
	Info          Info   `json:"exposure_info"`
	LastDetection *Posix `json:"last_exposure_detection_date"`
	// Version increments on every Replace; zero means never synced.
	Version uint64 `json:"version"`
}

// State holds the current exposure list and last detection timestamp.
// Replace is the only mutator.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState creates an empty store: no exposures, no detection timestamp.
func NewState() *State {
	return &State{snap: Snapshot{Info: Info{}}}
}

// Read returns a copy of the current snapshot.
func (s *State) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snap)
}

// Replace swaps both fields in a single step. Inputs are copied so callers
// keep no reference into the store.
func (s *State) Replace(info Info, lastDetection *Posix) {
	next := Snapshot{Info: info.Clone()}
	if lastDetection != nil {
		next.LastDetection = lastDetection.Ptr()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next.Version = s.snap.Version + 1
	s.snap = next
}

func copySnapshot(in Snapshot) Snapshot {
	out := Snapshot{Info: in.Info.Clone(), Version: in.Version}
	if in.LastDetection != nil {
		out.LastDetection = in.LastDetection.Ptr()
	}
	return out
}
