package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareValueVariance(t *testing.T) {
	p := Profile{Address: "Hovedgaden 1", PropertyValue: 11_500_000}
	snaps := []Snapshot{{Source: "bbr", Found: true, PropertyValue: 10_000_000}}

	out := Compare(p, snaps)
	require.Len(t, out, 1)
	a := out[0]
	assert.Equal(t, TypeValueMismatch, a.Type)
	assert.Equal(t, SeverityMedium, a.Severity, "variance above threshold but below 2x escalation")
	assert.Equal(t, "property_value", a.Field)
	assert.Equal(t, "bbr", a.Source)
	assert.Equal(t, "10000000", a.Expected)
	assert.Equal(t, "11500000", a.Actual)
}

func TestCompareEscalatesPastDoubleThreshold(t *testing.T) {
	p := Profile{Address: "Hovedgaden 1", PropertyValue: 13_000_000}
	out := Compare(p, []Snapshot{{Source: "bbr", Found: true, PropertyValue: 10_000_000}})
	require.Len(t, out, 1)
	assert.Equal(t, SeverityHigh, out[0].Severity, "variance past twice the threshold")
}

func TestCompareWithinThresholdIsSilent(t *testing.T) {
	p := Profile{
		Address:       "Hovedgaden 1",
		PropertyValue: 10_500_000,
		AreaSqm:       1000,
		AnnualTax:     50_000,
		BuildingYear:  1960,
	}
	snap := Snapshot{
		Source: "bbr", Found: true,
		PropertyValue: 10_000_000, AreaSqm: 1100, AnnualTax: 52_000, BuildingYear: 1962,
	}
	assert.Empty(t, Compare(p, []Snapshot{snap}))
}

func TestCompareSkipsUnknownFields(t *testing.T) {
	p := Profile{Address: "Hovedgaden 1", PropertyValue: 10_000_000}
	snap := Snapshot{Source: "bbr", Found: true, AreaSqm: 900} // no registry value, no profile area
	assert.Empty(t, Compare(p, []Snapshot{snap}))
}

func TestCompareMissingRecordIsLowSeverity(t *testing.T) {
	p := Profile{Address: "Hovedgaden 1"}
	out := Compare(p, []Snapshot{{Source: "tinglysning", Found: false}})
	require.Len(t, out, 1)
	assert.Equal(t, TypeMissingData, out[0].Type)
	assert.Equal(t, SeverityLow, out[0].Severity)
	assert.Contains(t, out[0].Description, "tinglysning")
}

func TestCompareBuildingYear(t *testing.T) {
	p := Profile{Address: "Hovedgaden 1", BuildingYear: 1965}

	out := Compare(p, []Snapshot{{Source: "bbr", Found: true, BuildingYear: 1962}})
	require.Len(t, out, 1)
	assert.Equal(t, TypeDateMismatch, out[0].Type)
	assert.Equal(t, SeverityMedium, out[0].Severity, "3 years off")

	out = Compare(p, []Snapshot{{Source: "bbr", Found: true, BuildingYear: 1950}})
	require.Len(t, out, 1)
	assert.Equal(t, SeverityHigh, out[0].Severity, "15 years off")

	out = Compare(p, []Snapshot{{Source: "bbr", Found: true, BuildingYear: 1963}})
	assert.Empty(t, out, "2 years off is tolerated")
}

func TestDeriveRiskFlags(t *testing.T) {
	high := func(typ string) Anomaly { return Anomaly{Type: typ, Severity: SeverityHigh, Description: "d"} }

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, DeriveRiskFlags(nil))
	})

	t.Run("multiple high anomalies go critical", func(t *testing.T) {
		flags := DeriveRiskFlags([]Anomaly{high(TypeDiscrepancy), high(TypeDateMismatch), high(TypeDiscrepancy)})
		require.Len(t, flags, 1)
		assert.Equal(t, FlagMultipleDiscrepancies, flags[0].Flag)
		assert.Equal(t, SeverityCritical, flags[0].Severity)
	})

	t.Run("repeated value mismatches", func(t *testing.T) {
		flags := DeriveRiskFlags([]Anomaly{
			{Type: TypeValueMismatch, Severity: SeverityMedium},
			{Type: TypeValueMismatch, Severity: SeverityMedium},
		})
		require.Len(t, flags, 1)
		assert.Equal(t, FlagValueInconsistency, flags[0].Flag)
		assert.Equal(t, SeverityHigh, flags[0].Severity)
	})

	t.Run("missing from multiple registries", func(t *testing.T) {
		flags := DeriveRiskFlags([]Anomaly{
			{Type: TypeMissingData, Severity: SeverityLow},
			{Type: TypeMissingData, Severity: SeverityLow},
		})
		require.Len(t, flags, 1)
		assert.Equal(t, FlagMissingRegistrations, flags[0].Flag)
		assert.Equal(t, SeverityMedium, flags[0].Severity)
	})

	t.Run("high value mismatch is critical on its own", func(t *testing.T) {
		a := Anomaly{Type: TypeValueMismatch, Severity: SeverityHigh, Description: "value off by 30%"}
		flags := DeriveRiskFlags([]Anomaly{a})
		require.Len(t, flags, 1)
		assert.Equal(t, FlagCriticalValueMismatch, flags[0].Flag)
		assert.Equal(t, SeverityCritical, flags[0].Severity)
		assert.Equal(t, "value off by 30%", flags[0].Description)
	})

	t.Run("order independent", func(t *testing.T) {
		set := []Anomaly{
			{Type: TypeMissingData, Severity: SeverityLow},
			{Type: TypeValueMismatch, Severity: SeverityMedium},
			{Type: TypeMissingData, Severity: SeverityLow},
			{Type: TypeValueMismatch, Severity: SeverityMedium},
		}
		reversed := make([]Anomaly, len(set))
		for i := range set {
			reversed[i] = set[len(set)-1-i]
		}
		assert.ElementsMatch(t, DeriveRiskFlags(set), DeriveRiskFlags(reversed))
	})
}
