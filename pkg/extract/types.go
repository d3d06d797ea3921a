// Package extract turns page text into candidate unit records via a
// structured-extraction backend, then normalizes the loosely typed
// output into clean candidates.
package extract

import (
	"context"
	"encoding/json"
	"time"
)

// FlexString tolerates the backend returning a field as string, number
// or null. Free-form JSON from a language model does all three.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(string(b))
	return nil
}

// RawUnit is one candidate row as returned by the extraction backend.
// Every field is individually optional.
type RawUnit struct {
	UnitID      FlexString `json:"unit_id"`
	Address     FlexString `json:"address"`
	Zipcode     FlexString `json:"zipcode"`
	Floor       FlexString `json:"floor"`
	Door        FlexString `json:"door"`
	SizeSqm     FlexString `json:"size_sqm"`
	RentCurrent FlexString `json:"rent_current"`
	TenantName  FlexString `json:"tenant_name"`
	Status      FlexString `json:"status"`
	LeaseStart  FlexString `json:"lease_start"`
}

// RawProperty is the optional document-level property profile used for
// registry cross-referencing.
type RawProperty struct {
	PropertyValue FlexString `json:"property_value"`
	BuildingYear  FlexString `json:"building_year"`
	AreaSqm       FlexString `json:"area_sqm"`
	AnnualTax     FlexString `json:"annual_tax"`
}

// Result is the decoded extraction backend output.
type Result struct {
	Units    []RawUnit    `json:"units"`
	Property *RawProperty `json:"property,omitempty"`
}

// Extractor is the structured-extraction boundary: text in, candidate
// rows out.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}

// Candidate is a normalized unit candidate ready for matching.
type Candidate struct {
	ExternalID  string
	Address     string
	Zipcode     string
	Floor       string
	Door        string
	SizeSqm     int
	RentCurrent int
	TenantName  string
	Status      string
	LeaseStart  time.Time
	// Defaulted lists fields whose values were fabricated by the
	// normalizer (unparsable dates default to "now").
	Defaulted []string
}
