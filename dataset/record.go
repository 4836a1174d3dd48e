// Package dataset holds the normalized meteorite dataset: record types,
// classification, mass banding, immutable snapshots and the read-side query
// and aggregation operations over them.
package dataset

import (
	"bytes"
	"encoding/json"
)

// ClassificationGroup is one of the coarse scientific categories assigned to
// every record by the classifier. Never empty.
type ClassificationGroup string

const (
	GroupLType        ClassificationGroup = "L-type"
	GroupHType        ClassificationGroup = "H-type"
	GroupLLType       ClassificationGroup = "LL-type"
	GroupCarbonaceous ClassificationGroup = "Carbonaceous"
	GroupEnstatite    ClassificationGroup = "Enstatite"
	GroupAchondrite   ClassificationGroup = "Achondrite"
	GroupIron         ClassificationGroup = "Iron"
	GroupMesosiderite ClassificationGroup = "Mesosiderite"
	GroupMartian      ClassificationGroup = "Martian"
	GroupLunar        ClassificationGroup = "Lunar"
	GroupPallasite    ClassificationGroup = "Pallasite"
	GroupUnknown      ClassificationGroup = "Unknown"
	GroupOther        ClassificationGroup = "Other"
)

// MassBand is a fixed bucket of mass magnitude used for aggregate counts.
type MassBand string

const (
	BandMicroscopic MassBand = "Microscopic" // [0, 10) g
	BandSmall       MassBand = "Small"       // [10, 100) g
	BandMedium      MassBand = "Medium"      // [100, 1000) g
	BandLarge       MassBand = "Large"       // [1000, 10000) g
	BandVeryLarge   MassBand = "Very Large"  // [10000, 1000000) g
	BandMassive     MassBand = "Massive"     // [1000000, ∞) g
)

// MassBands lists all bands in ascending order of mass.
var MassBands = []MassBand{
	BandMicroscopic, BandSmall, BandMedium, BandLarge, BandVeryLarge, BandMassive,
}

// Record is one normalized, classified observation. Immutable after
// normalization; snapshots are replaced wholesale, never mutated.
type Record struct {
	Name           string              `json:"name"`
	Classification string              `json:"recclass"`
	Group          ClassificationGroup `json:"group"`
	MassGrams      float64             `json:"mass_g"`
	Year           *int                `json:"year,omitempty"`
	Latitude       float64             `json:"reclat"`
	Longitude      float64             `json:"reclong"`
	Fall           string              `json:"fall,omitempty"`
	NameType       string              `json:"nametype,omitempty"`
	Band           MassBand            `json:"mass_band"`
}

// RawValue is a JSON field that may arrive as a string, a number or null.
// Upstream services are inconsistent about quoting numeric fields.
type RawValue string

func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = RawValue(s)
		return nil
	}
	// Bare number (or bool): keep the literal text
	*v = RawValue(data)
	return nil
}

// RawRecord is a dataset row as received from the remote source, before
// normalization. Ephemeral; discarded once the Record is built.
type RawRecord struct {
	Name     RawValue `json:"name"`
	NameType RawValue `json:"nametype"`
	Recclass RawValue `json:"recclass"`
	Mass     RawValue `json:"mass"`
	Fall     RawValue `json:"fall"`
	Year     RawValue `json:"year"`
	Reclat   RawValue `json:"reclat"`
	Reclong  RawValue `json:"reclong"`
}
