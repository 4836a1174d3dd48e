// Package cache persists the last successfully fetched dataset to a local
// CSV file. Single-slot: Save atomically replaces the prior version via a
// temp-file rename, so a concurrent Load never observes a half-written store.
package cache

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/dataset"
	"github.com/aphelion-labs/meteorid/errors"
)

var header = []string{"name", "recclass", "mass", "year", "reclat", "reclong", "fall", "nametype"}

// Metadata describes the stored dataset without loading it.
type Metadata struct {
	RowCount     int
	LastModified time.Time
}

// Store is the single-slot on-disk cache.
type Store struct {
	path    string
	binning dataset.Binning
	log     *zap.SugaredLogger
}

// NewStore creates a store at path. binning controls how mass bands are
// re-derived on load; it must match the normalizer's configuration.
func NewStore(path string, binning dataset.Binning, log *zap.SugaredLogger) *Store {
	if binning == "" {
		binning = dataset.BinningFixed
	}
	return &Store{path: path, binning: binning, log: log}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Save writes the full dataset, replacing any prior version. The write goes
// to a temp file in the same directory and is renamed into place.
func (s *Store) Save(records []dataset.Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrStoreWrite, err.Error())
	}

	tmp, err := os.CreateTemp(dir, ".meteorid-cache-*")
	if err != nil {
		return errors.Wrap(errors.ErrStoreWrite, err.Error())
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrStoreWrite, err.Error())
	}
	for _, rec := range records {
		year := ""
		if rec.Year != nil {
			year = strconv.Itoa(*rec.Year)
		}
		row := []string{
			rec.Name,
			rec.Classification,
			strconv.FormatFloat(rec.MassGrams, 'f', -1, 64),
			year,
			strconv.FormatFloat(rec.Latitude, 'f', -1, 64),
			strconv.FormatFloat(rec.Longitude, 'f', -1, 64),
			rec.Fall,
			rec.NameType,
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return errors.Wrap(errors.ErrStoreWrite, err.Error())
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrStoreWrite, err.Error())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrStoreWrite, err.Error())
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.Wrap(errors.ErrStoreWrite, err.Error())
	}

	s.log.Infow("Cache store saved",
		"path", s.path,
		"rows", len(records),
	)
	return nil
}

// Load reads the stored dataset in full. Returns (nil, false, nil) when the
// store is absent. Classification groups and mass bands are re-derived, so
// rule-table updates take effect without a refetch.
func (s *Store) Load() ([]dataset.Record, bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "open cache store")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "read cache header")
	}

	var records []dataset.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, errors.Wrap(err, "read cache row")
		}

		mass, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, false, errors.Wrapf(err, "corrupt mass %q in cache", row[2])
		}
		lat, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, false, errors.Wrapf(err, "corrupt latitude %q in cache", row[4])
		}
		lon, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, false, errors.Wrapf(err, "corrupt longitude %q in cache", row[5])
		}

		rec := dataset.Record{
			Name:           row[0],
			Classification: row[1],
			MassGrams:      mass,
			Latitude:       lat,
			Longitude:      lon,
			Fall:           row[6],
			NameType:       row[7],
		}
		rec.Group = dataset.Classify(rec.Classification)
		rec.Band = dataset.FixedBander{}.Band(mass)
		if row[3] != "" {
			year, err := strconv.Atoi(row[3])
			if err != nil {
				return nil, false, errors.Wrapf(err, "corrupt year %q in cache", row[3])
			}
			rec.Year = &year
		}
		records = append(records, rec)
	}

	if s.binning == dataset.BinningQuantile {
		masses := make([]float64, len(records))
		for i := range records {
			masses[i] = records[i].MassGrams
		}
		bander := dataset.NewQuantileBander(masses)
		for i := range records {
			records[i].Band = bander.Band(records[i].MassGrams)
		}
	}

	s.log.Debugw("Cache store loaded", "path", s.path, "rows", len(records))
	return records, true, nil
}

// Metadata reports the stored row count and file mtime without materializing
// records. Returns ok=false when the store is absent.
func (s *Store) Metadata() (Metadata, bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, errors.Wrap(err, "stat cache store")
	}

	f, err := os.Open(s.path)
	if err != nil {
		return Metadata{}, false, errors.Wrap(err, "open cache store")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	rows := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Metadata{}, false, errors.Wrap(err, "scan cache store")
		}
		rows++
	}
	if rows > 0 {
		rows-- // header
	}

	return Metadata{RowCount: rows, LastModified: info.ModTime()}, true, nil
}
