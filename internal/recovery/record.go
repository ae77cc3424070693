package recovery

import (
	"sync"
	"time"

	"github.com/elacour/granary/internal/core/domain"
)

// DefaultRingSize is how many error records the ring retains before the
// oldest are overwritten.
const DefaultRingSize = 100

// ErrorRecord captures one classified failure for diagnostics and the
// errors listing surface.
type ErrorRecord struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Op          Op                `json:"op"`
	Key         string            `json:"key,omitempty"`
	Kind        Kind              `json:"kind"`
	Severity    Severity          `json:"severity"`
	Recoverable bool              `json:"recoverable"`
	Message     string            `json:"message"`
	Context     map[string]string `json:"context,omitempty"`
}

// Ring is a fixed-capacity record buffer. Appends never fail and never
// grow memory past the configured size.
type Ring struct {
	mu      sync.Mutex
	records []ErrorRecord
	next    int
	full    bool
}

// NewRing returns a ring holding up to size records. Non-positive sizes
// fall back to DefaultRingSize.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{records: make([]ErrorRecord, size)}
}

// Append stamps an ID and timestamp on rec if absent and stores it,
// overwriting the oldest entry when full.
func (r *Ring) Append(rec ErrorRecord) ErrorRecord {
	if rec.ID == "" {
		rec.ID = domain.NewExportID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = rec
	r.next++
	if r.next == len(r.records) {
		r.next = 0
		r.full = true
	}
	return rec
}

// Records returns the retained records, oldest first.
func (r *Ring) Records() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]ErrorRecord, r.next)
		copy(out, r.records[:r.next])
		return out
	}
	out := make([]ErrorRecord, 0, len(r.records))
	out = append(out, r.records[r.next:]...)
	out = append(out, r.records[:r.next]...)
	return out
}

// Len reports how many records are retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.records)
	}
	return r.next
}

// CountsByKind aggregates retained records per classification kind.
func (r *Ring) CountsByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, rec := range r.Records() {
		counts[rec.Kind]++
	}
	return counts
}

// CountsBySeverity aggregates retained records per severity.
func (r *Ring) CountsBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, rec := range r.Records() {
		counts[rec.Severity]++
	}
	return counts
}

// Reset discards all retained records.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		r.records[i] = ErrorRecord{}
	}
	r.next = 0
	r.full = false
}
