package dataset

import "sort"

// ClassCount is a raw classification string with its record count, used for
// the top-classes summary table.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// SummaryStats are the headline numbers for a snapshot.
type SummaryStats struct {
	TotalRecords     int          `json:"total_records"`
	AverageMassGrams float64      `json:"average_mass_g"`
	EarliestYear     int          `json:"earliest_year,omitempty"`
	LatestYear       int          `json:"latest_year,omitempty"`
	TopClasses       []ClassCount `json:"top_classes"`
}

// Aggregates holds the derived count tables for one snapshot. Keys with zero
// count are omitted. Recomputed per snapshot, never mutated after build.
type Aggregates struct {
	ByGroupAndBand  map[ClassificationGroup]map[MassBand]int `json:"by_group_and_band"`
	ByYear          map[int]int                              `json:"by_year"`
	ByGroupOverTime map[ClassificationGroup]map[int]int      `json:"by_group_over_time"`
	Summary         SummaryStats                             `json:"summary"`
}

// topClassLimit bounds the top-classes summary table, matching the ten-row
// classes table on the original datasheet.
const topClassLimit = 10

// ComputeAggregates builds all derived count tables for a record set.
// Pure function of its input; records without a year are excluded from the
// time-keyed tables only.
func ComputeAggregates(records []Record) *Aggregates {
	agg := &Aggregates{
		ByGroupAndBand:  make(map[ClassificationGroup]map[MassBand]int),
		ByYear:          make(map[int]int),
		ByGroupOverTime: make(map[ClassificationGroup]map[int]int),
	}

	var massSum float64
	classCounts := make(map[string]int)

	for _, rec := range records {
		bands := agg.ByGroupAndBand[rec.Group]
		if bands == nil {
			bands = make(map[MassBand]int)
			agg.ByGroupAndBand[rec.Group] = bands
		}
		bands[rec.Band]++

		if rec.Year != nil {
			agg.ByYear[*rec.Year]++

			years := agg.ByGroupOverTime[rec.Group]
			if years == nil {
				years = make(map[int]int)
				agg.ByGroupOverTime[rec.Group] = years
			}
			years[*rec.Year]++

			if agg.Summary.EarliestYear == 0 || *rec.Year < agg.Summary.EarliestYear {
				agg.Summary.EarliestYear = *rec.Year
			}
			if *rec.Year > agg.Summary.LatestYear {
				agg.Summary.LatestYear = *rec.Year
			}
		}

		massSum += rec.MassGrams
		classCounts[rec.Classification]++
	}

	agg.Summary.TotalRecords = len(records)
	if len(records) > 0 {
		agg.Summary.AverageMassGrams = massSum / float64(len(records))
	}
	agg.Summary.TopClasses = topClasses(classCounts, topClassLimit)

	return agg
}

func topClasses(counts map[string]int, limit int) []ClassCount {
	out := make([]ClassCount, 0, len(counts))
	for class, count := range counts {
		out = append(out, ClassCount{Class: class, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Class < out[j].Class
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GeoPoint is a coordinate/mass triple for map-style consumers.
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	MassGrams float64 `json:"mass_g"`
}

// GeoPoints extracts the geographic view of a record set. Rows without valid
// coordinates never reach the primary dataset under the reference
// configuration, so this is a straight projection.
func GeoPoints(records []Record) []GeoPoint {
	points := make([]GeoPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, GeoPoint{
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
			MassGrams: rec.MassGrams,
		})
	}
	return points
}
