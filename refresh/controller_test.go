package refresh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/cache"
	"github.com/aphelion-labs/meteorid/dataset"
	"github.com/aphelion-labs/meteorid/errors"
	qtest "github.com/aphelion-labs/meteorid/internal/testing"
)

// fakeSource is a scriptable remote source.
type fakeSource struct {
	mu         sync.Mutex
	rows       []dataset.RawRecord
	fetchErr   error
	countErr   error
	fetchCalls int32
	countCalls int32
	fetchGate  chan struct{} // when set, Fetch blocks until closed
}

func (f *fakeSource) Fetch(ctx context.Context) ([]dataset.RawRecord, error) {
	atomic.AddInt32(&f.fetchCalls, 1)
	if f.fetchGate != nil {
		select {
		case <-f.fetchGate:
		case <-ctx.Done():
			return nil, errors.Wrap(errors.ErrSourceUnavailable, ctx.Err().Error())
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.rows, nil
}

func (f *fakeSource) Count(ctx context.Context) (int, error) {
	atomic.AddInt32(&f.countCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	// Upstream count tracks the scripted raw rows, dirty ones included,
	// the way Socrata counts before any client-side validation
	return len(f.rows), nil
}

func rawRows(n int) []dataset.RawRecord {
	rows := make([]dataset.RawRecord, n)
	for i := range rows {
		rows[i] = dataset.RawRecord{
			Name:     dataset.RawValue(fmt.Sprintf("Rock %03d", i)),
			Recclass: "L6",
			Mass:     dataset.RawValue(fmt.Sprintf("%d", (i+1)*100)),
			Year:     "1990-01-01T00:00:00.000",
			Reclat:   "10.5",
			Reclong:  "-20.25",
		}
	}
	return rows
}

type fixture struct {
	src        *fakeSource
	store      *cache.Store
	holder     *dataset.Holder
	controller *Controller
}

func newFixture(t *testing.T, src *fakeSource) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	store := cache.NewStore(filepath.Join(t.TempDir(), "landings.csv"), dataset.BinningFixed, log)
	holder := &dataset.Holder{}
	normalizer := dataset.NewNormalizer(dataset.NormalizeOptions{}, log)
	journal := NewJournal(qtest.CreateTestDB(t))
	controller := NewController(src, store, normalizer, holder, journal, log)
	return &fixture{src: src, store: store, holder: holder, controller: controller}
}

func TestBootstrapColdFetchesAndPublishes(t *testing.T) {
	fx := newFixture(t, &fakeSource{rows: rawRows(5)})

	require.NoError(t, fx.controller.Bootstrap(context.Background()))

	snap := fx.holder.Current()
	require.NotNil(t, snap)
	assert.Equal(t, 5, snap.Len())
	assert.Equal(t, StatusWarm, fx.controller.Status())

	// The fetched dataset was also persisted
	_, ok, err := fx.store.Metadata()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBootstrapColdFetchFailureIsFatal(t *testing.T) {
	fx := newFixture(t, &fakeSource{fetchErr: errors.ErrSourceUnavailable})

	err := fx.controller.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Nil(t, fx.holder.Current())
	assert.Equal(t, StatusCold, fx.controller.Status())
}

func TestBootstrapWarmUsesCacheWhenCountMatches(t *testing.T) {
	src := &fakeSource{rows: rawRows(5)}
	fx := newFixture(t, src)

	// Pre-seed the store with the same 5 rows
	normalizer := dataset.NewNormalizer(dataset.NormalizeOptions{}, zap.NewNop().Sugar())
	records, err := normalizer.NormalizeAll(rawRows(5))
	require.NoError(t, err)
	require.NoError(t, fx.store.Save(records))

	require.NoError(t, fx.controller.Bootstrap(context.Background()))

	assert.Equal(t, int32(0), atomic.LoadInt32(&src.fetchCalls), "matching count must not refetch")
	assert.Equal(t, StatusWarm, fx.controller.Status())
	require.NotNil(t, fx.holder.Current())
	assert.Equal(t, 5, fx.holder.Current().Len())
}

func TestBootstrapStaleRefetches(t *testing.T) {
	src := &fakeSource{rows: rawRows(8)}
	fx := newFixture(t, src)

	normalizer := dataset.NewNormalizer(dataset.NormalizeOptions{}, zap.NewNop().Sugar())
	records, err := normalizer.NormalizeAll(rawRows(5))
	require.NoError(t, err)
	require.NoError(t, fx.store.Save(records))

	require.NoError(t, fx.controller.Bootstrap(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls))
	assert.Equal(t, 8, fx.holder.Current().Len())
}

// rawRowsWithDirty returns n upstream rows of which the first has an
// unparseable mass, so normalization retains n-1.
func rawRowsWithDirty(n int) []dataset.RawRecord {
	rows := rawRows(n)
	rows[0].Mass = "n/a"
	return rows
}

func TestCheckStalenessIdempotent(t *testing.T) {
	src := &fakeSource{rows: rawRows(5)}
	fx := newFixture(t, src)
	ctx := context.Background()

	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))
	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls),
		"two sequential checks with no upstream change must fetch exactly once")
}

func TestCheckStalenessIdempotentWithRejectedRows(t *testing.T) {
	// Upstream has 3 rows, one unparseable: retained is 2 but the remote
	// count stays 3. The comparison must use the raw fetched count or every
	// check would go stale and refetch.
	src := &fakeSource{rows: rawRowsWithDirty(3)}
	fx := newFixture(t, src)
	ctx := context.Background()

	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))
	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls),
		"rejected rows must not make every check refetch")
	assert.Equal(t, StatusWarm, fx.controller.Status())
	assert.Equal(t, 2, fx.holder.Current().Len())
}

func TestBootstrapAfterRestartComparesRawCount(t *testing.T) {
	// First process: fetch 4 raw rows, 3 retained
	src := &fakeSource{rows: rawRowsWithDirty(4)}
	fx := newFixture(t, src)
	require.NoError(t, fx.controller.Bootstrap(context.Background()))
	require.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls))

	// Second process: same cache file and journal database, fresh
	// controller with no in-memory fetch history
	log := zap.NewNop().Sugar()
	normalizer := dataset.NewNormalizer(dataset.NormalizeOptions{}, log)
	restarted := NewController(src, fx.store, normalizer, &dataset.Holder{},
		fx.controller.journal, log)

	require.NoError(t, restarted.Bootstrap(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls),
		"journaled raw count must prevent a refetch after restart")
	assert.Equal(t, StatusWarm, restarted.Status())
}

func TestBootstrapCorruptCacheRefetches(t *testing.T) {
	src := &fakeSource{rows: rawRows(2)}
	fx := newFixture(t, src)

	// Structurally valid CSV with an unparseable mass; the row count on
	// disk matches the remote count exactly
	corrupt := "name,recclass,mass,year,reclat,reclong,fall,nametype\n" +
		"Rock 000,L6,garbage,1990,10.5,-20.25,,\n" +
		"Rock 001,L6,200,1990,10.5,-20.25,,\n"
	require.NoError(t, os.WriteFile(fx.store.Path(), []byte(corrupt), 0o644))

	require.NoError(t, fx.controller.Bootstrap(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls),
		"an unreadable cache must refetch even when row counts match")
	require.NotNil(t, fx.holder.Current())
	assert.Equal(t, 2, fx.holder.Current().Len())
	assert.Equal(t, StatusWarm, fx.controller.Status())
}

func TestCheckStalenessCountUnavailableKeepsWarm(t *testing.T) {
	src := &fakeSource{rows: rawRows(5)}
	fx := newFixture(t, src)
	ctx := context.Background()

	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))

	src.mu.Lock()
	src.countErr = errors.ErrSourceUnavailable
	src.mu.Unlock()

	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))
	assert.Equal(t, StatusWarm, fx.controller.Status())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls))
}

func TestFailedRefreshRetainsWarmSnapshot(t *testing.T) {
	src := &fakeSource{rows: rawRows(5)}
	fx := newFixture(t, src)
	ctx := context.Background()

	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))
	old := fx.holder.Current()
	require.NotNil(t, old)

	// Upstream grew but the fetch now fails
	src.mu.Lock()
	src.rows = rawRows(9)
	src.fetchErr = errors.ErrSourceUnavailable
	src.mu.Unlock()

	err := fx.controller.CheckStaleness(ctx, TriggerManual)
	require.Error(t, err)
	assert.Same(t, old, fx.holder.Current(), "failed refresh must not discard the working dataset")
	assert.Equal(t, StatusWarm, fx.controller.Status())
}

func TestConcurrentChecksShareOneFetch(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSource{rows: rawRows(3), fetchGate: gate}
	fx := newFixture(t, src)
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fx.controller.CheckStaleness(ctx, TriggerManual)
		}(i)
	}

	// Let all callers pile up behind the in-flight fetch, then release it
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.fetchCalls),
		"concurrent callers must observe the single in-flight refresh")
	assert.Equal(t, 3, fx.holder.Current().Len())
}

func TestRefreshWritesJournal(t *testing.T) {
	src := &fakeSource{rows: rawRows(4)}
	fx := newFixture(t, src)
	ctx := context.Background()

	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerManual))
	require.NoError(t, fx.controller.CheckStaleness(ctx, TriggerScheduled))

	entries, err := fx.controller.journal.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first: the second check skipped, the first succeeded
	assert.Equal(t, OutcomeSkipped, entries[0].Outcome)
	assert.Equal(t, TriggerScheduled, entries[0].Trigger)
	assert.Equal(t, OutcomeSuccess, entries[1].Outcome)
	assert.Equal(t, 4, entries[1].RetainedRows)
	require.NotNil(t, entries[1].FinishedAt)
}
