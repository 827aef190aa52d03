// Package exposure defines the exposure data model and the in-memory state
// store that consumers read the current exposure view from.
package exposure

// Posix is a point in time exactly as reported by the external
// exposure-detection subsystem. It is stored, never re-interpreted.
type Posix int64

// Ptr returns a pointer to p, for building optional timestamps.
func (p Posix) Ptr() *Posix {
	return &p
}

// Record is one detected proximity match. Its contents are opaque to the
// sync layer.
type Record struct {
	ID   string `json:"id"`
	Date Posix  `json:"date"`
}

// Info is the ordered list of exposure records, most relevant first, as
// delivered by the external subsystem. It is never re-sorted and never
// mutated in place.
type Info []Record

// Clone returns a copy of info that shares no backing array with it.
// A nil Info clones to an empty, non-nil one.
func (info Info) Clone() Info {
	out := make(Info, len(info))
	copy(out, info)
	return out
}

// Key is a temporary exposure key as reported by the external subsystem.
type Key struct {
	KeyData            string `json:"key"`
	RollingStartNumber int64  `json:"rollingStartNumber"`
	RollingPeriod      int    `json:"rollingPeriod"`
	TransmissionRisk   int    `json:"transmissionRisk"`
}

// ResultKind discriminates the two Result variants.
type ResultKind string

const (
	KindSuccess ResultKind = "success"
	KindFailure ResultKind = "failure"
)

// Result is the outcome of an operation that can fail. Failures carry a
// human-readable message and no further classification.
type Result struct {
	Kind  ResultKind `json:"kind"`
	Error string     `json:"error,omitempty"`
}

// Success returns a successful Result.
func Success() Result {
	return Result{Kind: KindSuccess}
}

// Failure returns a failed Result carrying msg.
func Failure(msg string) Result {
	return Result{Kind: KindFailure, Error: msg}
}

// OK reports whether r is a success.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}
