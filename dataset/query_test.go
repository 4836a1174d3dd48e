package dataset

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedSnapshot(n int) *Snapshot {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			Name:      fmt.Sprintf("Meteorite %03d", i),
			Group:     GroupOther,
			MassGrams: float64(i),
			Band:      FixedBander{}.Band(float64(i)),
		}
	}
	return NewSnapshot(records, time.Now())
}

func TestQueryUnfiltered(t *testing.T) {
	snap := numberedSnapshot(25)

	res := snap.Query(Filter{}, Page{Offset: 0, Limit: 10})
	assert.Equal(t, 25, res.TotalCount)
	assert.Equal(t, 25, res.FilteredCount)
	require.Len(t, res.Rows, 10)
	assert.Equal(t, "Meteorite 000", res.Rows[0].Name)
}

func TestQueryPaginationDisjointUnion(t *testing.T) {
	snap := numberedSnapshot(25)

	first := snap.Query(Filter{}, Page{Offset: 0, Limit: 10})
	second := snap.Query(Filter{}, Page{Offset: 10, Limit: 10})

	seen := make(map[string]bool)
	var union []string
	for _, rec := range append(append([]Record{}, first.Rows...), second.Rows...) {
		assert.False(t, seen[rec.Name], "pages must be disjoint: %s", rec.Name)
		seen[rec.Name] = true
		union = append(union, rec.Name)
	}

	require.Len(t, union, 20)
	for i, name := range union {
		assert.Equal(t, fmt.Sprintf("Meteorite %03d", i), name,
			"union must equal the first 20 rows in insertion order")
	}
}

func TestQueryFilterCaseInsensitive(t *testing.T) {
	records := []Record{
		{Name: "Tagish Lake"},
		{Name: "Aachen"},
		{Name: "tagish impostor"},
	}
	snap := NewSnapshot(records, time.Now())

	res := snap.Query(Filter{NameContains: "Tagish"}, Page{Offset: 0, Limit: 50})
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 2, res.FilteredCount)
	for _, rec := range res.Rows {
		assert.Contains(t, []string{"Tagish Lake", "tagish impostor"}, rec.Name)
	}

	// filteredCount is independent of the pagination window
	narrow := snap.Query(Filter{NameContains: "TAGISH"}, Page{Offset: 0, Limit: 1})
	assert.Equal(t, 2, narrow.FilteredCount)
	assert.Len(t, narrow.Rows, 1)
}

func TestQueryOffsetBeyondFilteredCount(t *testing.T) {
	snap := numberedSnapshot(5)

	res := snap.Query(Filter{}, Page{Offset: 100, Limit: 10})
	assert.Empty(t, res.Rows)
	assert.Equal(t, 5, res.FilteredCount)
}

func TestQueryNegativeOffsetClamped(t *testing.T) {
	snap := numberedSnapshot(5)

	res := snap.Query(Filter{}, Page{Offset: -3, Limit: 2})
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Meteorite 000", res.Rows[0].Name)
}

func TestQuerySnapshotIsolation(t *testing.T) {
	var holder Holder
	old := numberedSnapshot(10)
	holder.Publish(old)

	// A reader acquires its snapshot reference at call start
	acquired := holder.Current()
	before := acquired.Query(Filter{}, Page{Offset: 0, Limit: 100})

	// Writer installs a new snapshot mid-flight
	holder.Publish(numberedSnapshot(500))

	after := acquired.Query(Filter{}, Page{Offset: 0, Limit: 100})
	assert.Equal(t, before.TotalCount, after.TotalCount)
	assert.Equal(t, before.FilteredCount, after.FilteredCount)
	assert.Equal(t, before.Rows, after.Rows)

	// New readers observe the new snapshot
	assert.Equal(t, 500, holder.Current().Query(Filter{}, Page{Offset: 0, Limit: 1}).TotalCount)
}

func TestHolderStartsEmpty(t *testing.T) {
	var holder Holder
	assert.Nil(t, holder.Current())
}
