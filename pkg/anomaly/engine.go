// Package anomaly cross-references property attributes against external
// registry snapshots and derives severity-ranked anomalies plus
// aggregate risk flags. Everything here is a pure function of its
// inputs.
package anomaly

import (
	"fmt"
	"math"
)

// Anomaly types.
const (
	TypeDiscrepancy   = "discrepancy"
	TypeMissingData   = "missing_data"
	TypeValueMismatch = "value_mismatch"
	TypeDateMismatch  = "date_mismatch"
)

// Severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Relative-variance thresholds per field. Severity escalates to high at
// twice the base threshold.
const (
	thresholdValue = 0.10
	thresholdArea  = 0.15
	thresholdTax   = 0.10

	yearMediumDiff = 2
	yearHighDiff   = 5
)

// Profile is the extracted-or-registered property attribute set being
// checked. Zero values mean unknown and are skipped.
type Profile struct {
	Address       string
	Zipcode       string
	PropertyValue float64
	BuildingYear  int
	AreaSqm       float64
	AnnualTax     float64
}

// Snapshot is one external registry's view of the property.
type Snapshot struct {
	Source        string
	Found         bool
	PropertyValue float64
	BuildingYear  int
	AreaSqm       float64
	AnnualTax     float64
}

// Anomaly is one detected discrepancy between two data sources.
type Anomaly struct {
	Type        string
	Severity    string
	Field       string
	Expected    string
	Actual      string
	Source      string
	Description string
}

// Compare checks the profile against each registry snapshot and returns
// the anomalies, ordered by snapshot then field.
func Compare(p Profile, snapshots []Snapshot) []Anomaly {
	var out []Anomaly
	for _, snap := range snapshots {
		if !snap.Found {
			out = append(out, Anomaly{
				Type:        TypeMissingData,
				Severity:    SeverityLow,
				Source:      snap.Source,
				Description: fmt.Sprintf("no record for %s in %s", p.Address, snap.Source),
			})
			continue
		}
		if a, ok := numericAnomaly("property_value", TypeValueMismatch, p.PropertyValue, snap.PropertyValue, thresholdValue, snap.Source); ok {
			out = append(out, a)
		}
		if a, ok := numericAnomaly("area_sqm", TypeDiscrepancy, p.AreaSqm, snap.AreaSqm, thresholdArea, snap.Source); ok {
			out = append(out, a)
		}
		if a, ok := numericAnomaly("annual_tax", TypeValueMismatch, p.AnnualTax, snap.AnnualTax, thresholdTax, snap.Source); ok {
			out = append(out, a)
		}
		if a, ok := yearAnomaly(p.BuildingYear, snap.BuildingYear, snap.Source); ok {
			out = append(out, a)
		}
	}
	return out
}

// numericAnomaly applies the relative-variance rule
// |extracted - registry| / registry against the field threshold.
func numericAnomaly(field, typ string, extracted, registry, threshold float64, source string) (Anomaly, bool) {
	if extracted <= 0 || registry <= 0 {
		return Anomaly{}, false
	}
	variance := math.Abs(extracted-registry) / registry
	if variance <= threshold {
		return Anomaly{}, false
	}
	severity := SeverityMedium
	if variance > 2*threshold {
		severity = SeverityHigh
	}
	return Anomaly{
		Type:     typ,
		Severity: severity,
		Field:    field,
		Expected: fmt.Sprintf("%.0f", registry),
		Actual:   fmt.Sprintf("%.0f", extracted),
		Source:   source,
		Description: fmt.Sprintf("%s differs from %s by %.0f%% (registry %.0f, document %.0f)",
			field, source, variance*100, registry, extracted),
	}, true
}

func yearAnomaly(extracted, registry int, source string) (Anomaly, bool) {
	if extracted == 0 || registry == 0 {
		return Anomaly{}, false
	}
	diff := extracted - registry
	if diff < 0 {
		diff = -diff
	}
	if diff <= yearMediumDiff {
		return Anomaly{}, false
	}
	severity := SeverityMedium
	if diff > yearHighDiff {
		severity = SeverityHigh
	}
	return Anomaly{
		Type:     TypeDateMismatch,
		Severity: severity,
		Field:    "building_year",
		Expected: fmt.Sprintf("%d", registry),
		Actual:   fmt.Sprintf("%d", extracted),
		Source:   source,
		Description: fmt.Sprintf("building year differs from %s by %d years (registry %d, document %d)",
			source, diff, registry, extracted),
	}, true
}
