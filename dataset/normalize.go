package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/errors"
)

// Binning selects the mass banding method.
type Binning string

const (
	BinningFixed    Binning = "fixed"    // documented fixed boundaries (reference behavior)
	BinningQuantile Binning = "quantile" // equal-count bins derived per dataset
)

// NormalizeOptions configures row retention and banding.
type NormalizeOptions struct {
	// RequireYear drops rows without a parseable year. The reference
	// configuration tolerates absent years.
	RequireYear bool
	Binning     Binning
}

// Normalizer converts raw rows into Records. Rows failing required-field
// validation (mass, latitude, longitude) are silently excluded; rejection is
// reflected only in a smaller row count.
type Normalizer struct {
	opts NormalizeOptions
	log  *zap.SugaredLogger
}

func NewNormalizer(opts NormalizeOptions, log *zap.SugaredLogger) *Normalizer {
	if opts.Binning == "" {
		opts.Binning = BinningFixed
	}
	return &Normalizer{opts: opts, log: log}
}

// Normalize converts a single raw row. ok is false when a required field is
// missing or unparseable. The mass band is assigned by the fixed bander;
// NormalizeAll re-bands afterwards under quantile binning.
func (n *Normalizer) Normalize(raw RawRecord) (Record, bool) {
	mass, ok := parseMass(string(raw.Mass))
	if !ok {
		return Record{}, false
	}
	lat, ok := parseCoordinate(string(raw.Reclat), 90)
	if !ok {
		return Record{}, false
	}
	lon, ok := parseCoordinate(string(raw.Reclong), 180)
	if !ok {
		return Record{}, false
	}

	year, hasYear := parseYear(string(raw.Year))
	if n.opts.RequireYear && !hasYear {
		return Record{}, false
	}

	rec := Record{
		Name:           strings.TrimSpace(string(raw.Name)),
		Classification: strings.TrimSpace(string(raw.Recclass)),
		MassGrams:      mass,
		Latitude:       lat,
		Longitude:      lon,
		Fall:           strings.TrimSpace(string(raw.Fall)),
		NameType:       strings.TrimSpace(string(raw.NameType)),
	}
	rec.Group = Classify(rec.Classification)
	rec.Band = FixedBander{}.Band(mass)
	if hasYear {
		y := year
		rec.Year = &y
	}
	return rec, true
}

// NormalizeAll converts a fetched batch in bulk. Returns ErrSchemaMissing
// when the batch is non-empty but no row carries a mass field at all, which
// indicates the upstream schema changed rather than ordinary dirty rows.
func (n *Normalizer) NormalizeAll(raws []RawRecord) ([]Record, error) {
	massSeen := 0
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(string(raw.Mass)) != "" {
			massSeen++
		}
		rec, ok := n.Normalize(raw)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	if len(raws) > 0 && massSeen == 0 {
		return nil, errors.Wrapf(errors.ErrSchemaMissing,
			"no mass field in any of %d rows", len(raws))
	}

	if n.opts.Binning == BinningQuantile {
		masses := make([]float64, len(records))
		for i := range records {
			masses[i] = records[i].MassGrams
		}
		bander := NewQuantileBander(masses)
		for i := range records {
			records[i].Band = bander.Band(records[i].MassGrams)
		}
	}

	if n.log != nil {
		n.log.Debugw("Normalized dataset batch",
			"raw_rows", len(raws),
			"retained", len(records),
			"rejected", len(raws)-len(records),
			"binning", n.opts.Binning,
		)
	}
	return records, nil
}

func parseMass(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	mass, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(mass) || math.IsInf(mass, 0) || mass < 0 {
		return 0, false
	}
	return mass, true
}

// parseCoordinate parses a latitude or longitude; values outside [-bound,
// bound] are treated as parse failures.
func parseCoordinate(s string, bound float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < -bound || v > bound {
		return 0, false
	}
	return v, true
}

var yearLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"2006",
}

// parseYear extracts the calendar year from a date-like string. Absence is
// tolerated by the caller; this only reports whether a year was found.
func parseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range yearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}
	// Last resort: a leading 4-digit year, e.g. "1880 Jan"
	if len(s) >= 4 {
		if y, err := strconv.Atoi(s[:4]); err == nil && y > 0 {
			return y, true
		}
	}
	return 0, false
}
