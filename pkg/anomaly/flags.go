package anomaly

// Flag names.
const (
	FlagMultipleDiscrepancies = "multiple_discrepancies"
	FlagValueInconsistency    = "value_inconsistency"
	FlagMissingRegistrations  = "missing_registrations"
	FlagCriticalValueMismatch = "critical_value_mismatch"
)

// RiskFlag is an aggregate signal derived from a set of anomalies.
type RiskFlag struct {
	Flag        string
	Severity    string
	Description string
}

// DeriveRiskFlags computes the aggregate flags. The derivation is
// order-independent: only counts and per-anomaly attributes matter.
func DeriveRiskFlags(anomalies []Anomaly) []RiskFlag {
	highCount := 0
	valueMismatches := 0
	missingData := 0
	var criticalMismatch *Anomaly
	for i, a := range anomalies {
		if a.Severity == SeverityHigh {
			highCount++
		}
		if a.Type == TypeValueMismatch {
			valueMismatches++
			if a.Severity == SeverityHigh && criticalMismatch == nil {
				criticalMismatch = &anomalies[i]
			}
		}
		if a.Type == TypeMissingData {
			missingData++
		}
	}

	var flags []RiskFlag
	if highCount >= 3 {
		flags = append(flags, RiskFlag{
			Flag:        FlagMultipleDiscrepancies,
			Severity:    SeverityCritical,
			Description: "three or more high-severity anomalies detected",
		})
	}
	if valueMismatches >= 2 {
		flags = append(flags, RiskFlag{
			Flag:        FlagValueInconsistency,
			Severity:    SeverityHigh,
			Description: "multiple value mismatches across data sources",
		})
	}
	if missingData >= 2 {
		flags = append(flags, RiskFlag{
			Flag:        FlagMissingRegistrations,
			Severity:    SeverityMedium,
			Description: "property is missing from multiple registries",
		})
	}
	if criticalMismatch != nil {
		flags = append(flags, RiskFlag{
			Flag:        FlagCriticalValueMismatch,
			Severity:    SeverityCritical,
			Description: criticalMismatch.Description,
		})
	}
	return flags
}
