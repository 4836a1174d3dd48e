package dataset

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is one immutable, fully-built dataset version. The refresh
// controller builds snapshots off to the side and installs them with a single
// atomic pointer swap; in-flight readers keep the version they acquired.
type Snapshot struct {
	records   []Record
	fetchedAt time.Time

	aggOnce sync.Once
	agg     *Aggregates
}

// NewSnapshot wraps a fully-normalized record set. The caller must not
// retain or mutate records after handing them over.
func NewSnapshot(records []Record, fetchedAt time.Time) *Snapshot {
	return &Snapshot{records: records, fetchedAt: fetchedAt}
}

// Records returns the full record slice. Callers must treat it as read-only.
func (s *Snapshot) Records() []Record { return s.records }

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int { return len(s.records) }

// FetchedAt reports when the underlying data was fetched or loaded.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Aggregates returns the derived count tables, computed once per snapshot.
func (s *Snapshot) Aggregates() *Aggregates {
	s.aggOnce.Do(func() {
		s.agg = ComputeAggregates(s.records)
	})
	return s.agg
}

// Holder publishes the current snapshot to concurrent readers. Single writer
// (the refresh controller), many readers, no locks on the read path.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Current returns the installed snapshot, or nil if none has ever been
// published. Readers call this once at the start of an operation and use the
// returned reference throughout.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Publish atomically installs a new snapshot.
func (h *Holder) Publish(s *Snapshot) {
	h.current.Store(s)
}
