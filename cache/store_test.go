package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/dataset"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "landings.csv"), dataset.BinningFixed, zap.NewNop().Sugar())
}

func sampleRecords() []dataset.Record {
	year := 1880
	return []dataset.Record{
		{
			Name:           "Aachen",
			Classification: "L5",
			Group:          dataset.GroupLType,
			MassGrams:      21,
			Year:           &year,
			Latitude:       50.775,
			Longitude:      6.08333,
			Fall:           "Fell",
			NameType:       "Valid",
			Band:           dataset.BandSmall,
		},
		{
			Name:           "Hoba",
			Classification: "Iron, IVB",
			Group:          dataset.GroupIron,
			MassGrams:      60000000,
			Latitude:       -19.58333,
			Longitude:      17.91667,
			Fall:           "Found",
			NameType:       "Valid",
			Band:           dataset.BandMassive,
		},
	}
}

func TestLoadAbsentStore(t *testing.T) {
	s := testStore(t)

	records, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, records)

	_, ok, err = s.Metadata()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleRecords()))

	records, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 2)

	assert.Equal(t, "Aachen", records[0].Name)
	assert.Equal(t, 21.0, records[0].MassGrams)
	require.NotNil(t, records[0].Year)
	assert.Equal(t, 1880, *records[0].Year)
	assert.Nil(t, records[1].Year)

	// Group and band are re-derived on load
	assert.Equal(t, dataset.GroupLType, records[0].Group)
	assert.Equal(t, dataset.BandSmall, records[0].Band)
	assert.Equal(t, dataset.GroupIron, records[1].Group)
	assert.Equal(t, dataset.BandMassive, records[1].Band)
}

func TestSaveReplacesPriorVersion(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleRecords()))
	require.NoError(t, s.Save(sampleRecords()[:1]))

	records, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, records, 1)

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMetadata(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleRecords()))

	meta, ok, err := s.Metadata()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, meta.RowCount)
	assert.False(t, meta.LastModified.IsZero())
}

func TestSaveEmptyDataset(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(nil))

	records, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, records)

	meta, ok, err := s.Metadata()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, meta.RowCount)
}

func TestLoadCorruptMassFails(t *testing.T) {
	s := testStore(t)
	content := "name,recclass,mass,year,reclat,reclong,fall,nametype\nAachen,L5,not-a-number,1880,50.775,6.08333,Fell,Valid\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	_, _, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt mass")
}
