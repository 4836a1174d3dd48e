// Package refresh owns the dataset lifecycle: deciding when the local cache
// is stale relative to the remote source, fetching and normalizing
// replacement data, and publishing immutable snapshots. It is the sole
// writer to the snapshot holder.
package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/cache"
	"github.com/aphelion-labs/meteorid/dataset"
	"github.com/aphelion-labs/meteorid/errors"
)

// Status is the controller's view of the local dataset.
type Status string

const (
	StatusCold  Status = "cold"  // no local data
	StatusWarm  Status = "warm"  // local data present and considered valid
	StatusStale Status = "stale" // local data superseded by upstream, refresh underway
)

// Source is the remote data service as the controller sees it.
type Source interface {
	Fetch(ctx context.Context) ([]dataset.RawRecord, error)
	Count(ctx context.Context) (int, error)
}

// Broadcaster receives refresh lifecycle events for push to presentation
// clients. Implementations must not block.
type Broadcaster interface {
	RefreshStarted(trigger Trigger)
	SnapshotInstalled(rows int, fetchedAt time.Time)
	RefreshFailed(trigger Trigger, err error)
}

// flight tracks one in-progress refresh so concurrent callers can join it.
type flight struct {
	done chan struct{}
	err  error
}

// Controller is the refresh state machine. All mutations of the snapshot
// holder go through it; a mutex gate ensures at most one
// fetch-normalize-save-publish sequence runs at a time.
type Controller struct {
	source      Source
	store       *cache.Store
	normalizer  *dataset.Normalizer
	holder      *dataset.Holder
	journal     *Journal
	broadcaster Broadcaster // nil when nothing listens
	log         *zap.SugaredLogger

	mu       sync.Mutex
	inflight *flight
	status   Status

	// Raw upstream row count of the last successful fetch, before
	// normalization rejects rows. This is what remote counts compare
	// against; the retained count is always smaller when rows are dirty.
	rawCount int
	haveRaw  bool
}

// NewController wires the refresh pipeline. journal and broadcaster may be
// nil; everything else is required.
func NewController(src Source, store *cache.Store, normalizer *dataset.Normalizer,
	holder *dataset.Holder, journal *Journal, log *zap.SugaredLogger) *Controller {
	return &Controller{
		source:     src,
		store:      store,
		normalizer: normalizer,
		holder:     holder,
		journal:    journal,
		status:     StatusCold,
		log:        log,
	}
}

// SetBroadcaster attaches a lifecycle event sink. Call before Bootstrap.
func (c *Controller) SetBroadcaster(b Broadcaster) { c.broadcaster = b }

// Status returns the controller's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Bootstrap runs the startup path: load the cache store if present and
// publish it, then run a staleness check. With no local data and a failed
// fetch there is no dataset at all, which is fatal: the query side must
// reject all reads until a later refresh succeeds.
func (c *Controller) Bootstrap(ctx context.Context) error {
	records, ok, err := c.store.Load()
	if err != nil {
		// Corrupt cache is recoverable: refetch instead of dying
		c.log.Warnw("Cache store unreadable, falling back to refetch", "error", err)
	} else if ok {
		meta, _, metaErr := c.store.Metadata()
		fetchedAt := time.Now()
		if metaErr == nil {
			fetchedAt = meta.LastModified
		}
		c.holder.Publish(dataset.NewSnapshot(records, fetchedAt))
		c.setStatus(StatusWarm)
		c.log.Infow("Snapshot restored from cache store",
			"rows", len(records),
			"cached_at", fetchedAt,
		)
	}

	err = c.CheckStaleness(ctx, TriggerStartup)
	if c.holder.Current() == nil {
		if err == nil {
			err = errors.ErrNoSnapshot
		}
		return errors.Wrap(err, "startup produced no dataset")
	}
	if err != nil {
		// Warm data survived a failed startup refresh; reads proceed on it
		c.log.Warnw("Startup staleness check failed, serving cached data", "error", err)
	}
	return nil
}

// CheckStaleness decides whether the local dataset is stale and refreshes it
// if so. Idempotent and safe to call repeatedly: concurrent callers do not
// trigger duplicate fetches, they wait for and observe the in-flight
// refresh's result.
func (c *Controller) CheckStaleness(ctx context.Context, trigger Trigger) error {
	c.mu.Lock()
	if c.inflight != nil {
		f := c.inflight
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	c.inflight = f
	c.mu.Unlock()

	f.err = c.checkAndRefresh(ctx, trigger)
	close(f.done)

	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()
	return f.err
}

func (c *Controller) checkAndRefresh(ctx context.Context, trigger Trigger) error {
	journalID := c.journalBegin(trigger)

	snap := c.holder.Current()
	if snap == nil {
		// Nothing usable in memory: the cache is absent or was unreadable
		c.setStatus(StatusCold)
		c.log.Infow("No usable local dataset, fetching", "trigger", trigger)
		return c.refresh(ctx, trigger, journalID, nil)
	}

	// The remote count is a raw upstream row count, so it must compare
	// against the raw count of our last successful fetch, not the retained
	// snapshot length: normalization rejects rows, and comparing retained
	// to raw would report stale forever
	localRaw, haveRaw := c.lastRawCount()
	if !haveRaw {
		// No fetch history survives (cache restored, empty journal).
		// Best effort: the retained count, which over-refreshes once
		localRaw = snap.Len()
	}

	remote, err := c.source.Count(ctx)
	if err != nil {
		// Count is best-effort: unobtainable means local data is used as-is
		c.setStatus(StatusWarm)
		c.log.Warnw("Remote count unavailable, keeping local dataset",
			"local_rows", snap.Len(),
			"error", err,
		)
		c.journalFinish(journalID, OutcomeSkipped, 0, snap.Len(), nil, err)
		return nil
	}

	if remote == localRaw {
		c.setStatus(StatusWarm)
		c.log.Debugw("Local dataset current",
			"rows", snap.Len(),
			"raw_rows", localRaw,
			"remote_count", remote,
		)
		c.journalFinish(journalID, OutcomeSkipped, 0, snap.Len(), &remote, nil)
		return nil
	}

	c.setStatus(StatusStale)
	c.log.Infow("Local dataset stale, refetching",
		"local_raw_rows", localRaw,
		"remote_count", remote,
		"trigger", trigger,
	)
	return c.refresh(ctx, trigger, journalID, &remote)
}

// refresh runs one fetch-normalize-save-publish sequence. A failure leaves
// any existing snapshot untouched.
func (c *Controller) refresh(ctx context.Context, trigger Trigger, journalID string, remoteCount *int) error {
	if c.broadcaster != nil {
		c.broadcaster.RefreshStarted(trigger)
	}

	raws, err := c.source.Fetch(ctx)
	if err != nil {
		c.journalFinish(journalID, OutcomeFailed, 0, 0, remoteCount, err)
		c.failed(trigger, err)
		return errors.Wrap(err, "fetch")
	}

	records, err := c.normalizer.NormalizeAll(raws)
	if err != nil {
		c.journalFinish(journalID, OutcomeFailed, len(raws), 0, remoteCount, err)
		c.failed(trigger, err)
		return errors.Wrap(err, "normalize")
	}

	// A store write failure is a non-fatal inconsistency: the in-memory
	// snapshot is already built, so publish it and carry the stale file
	if err := c.store.Save(records); err != nil {
		c.log.Errorw("Cache store write failed, publishing snapshot anyway",
			"rows", len(records),
			"error", err,
		)
	}

	fetchedAt := time.Now()
	c.holder.Publish(dataset.NewSnapshot(records, fetchedAt))
	c.mu.Lock()
	c.rawCount = len(raws)
	c.haveRaw = true
	c.status = StatusWarm
	c.mu.Unlock()
	c.journalFinish(journalID, OutcomeSuccess, len(raws), len(records), remoteCount, nil)

	c.log.Infow("Snapshot installed",
		"raw_rows", len(raws),
		"retained_rows", len(records),
		"trigger", trigger,
	)
	if c.broadcaster != nil {
		c.broadcaster.SnapshotInstalled(len(records), fetchedAt)
	}
	return nil
}

func (c *Controller) failed(trigger Trigger, err error) {
	if c.holder.Current() != nil {
		// A failed refresh never discards a working dataset
		c.setStatus(StatusWarm)
	}
	if c.broadcaster != nil {
		c.broadcaster.RefreshFailed(trigger, err)
	}
}

// lastRawCount reports the raw row count of the last successful fetch:
// in-memory if this process has refreshed, otherwise from the journal so the
// count survives a restart that bootstraps from cache.
func (c *Controller) lastRawCount() (int, bool) {
	c.mu.Lock()
	if c.haveRaw {
		defer c.mu.Unlock()
		return c.rawCount, true
	}
	c.mu.Unlock()

	if c.journal == nil {
		return 0, false
	}
	n, ok, err := c.journal.LastSuccessRawRows()
	if err != nil {
		c.log.Warnw("Journal read failed", "error", err)
		return 0, false
	}
	return n, ok
}

// Journal writes never fail a refresh; they are observability only.

func (c *Controller) journalBegin(trigger Trigger) string {
	if c.journal == nil {
		return ""
	}
	id, err := c.journal.Begin(trigger)
	if err != nil {
		c.log.Warnw("Journal write failed", "error", err)
		return ""
	}
	return id
}

func (c *Controller) journalFinish(id string, outcome Outcome, rawRows, retained int, remoteCount *int, refreshErr error) {
	if c.journal == nil || id == "" {
		return
	}
	if err := c.journal.Finish(id, outcome, rawRows, retained, remoteCount, refreshErr); err != nil {
		c.log.Warnw("Journal update failed", "error", err)
	}
}
