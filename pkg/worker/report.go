package worker

import (
	"rentroll/models"
	"rentroll/pkg/anomaly"
	"rentroll/pkg/extract"
	"rentroll/pkg/match"
)

// buildResult assembles the final job report payload.
func buildResult(rep *match.Report, anomalies []anomaly.Anomaly) *models.JobResult {
	result := &models.JobResult{
		Summary:   rep.Summary,
		Stats:     rep.Stats,
		Anomalies: toAnomalyRecords(anomalies),
		RiskFlags: toRiskFlags(anomaly.DeriveRiskFlags(anomalies)),
	}
	for _, m := range rep.Matches {
		result.MatchedUnits = append(result.MatchedUnits, models.MatchedUnit{
			ExternalID:  m.Candidate.ExternalID,
			Address:     m.Candidate.Address,
			Floor:       m.Candidate.Floor,
			Door:        m.Candidate.Door,
			UnitID:      m.Unit.ID,
			Confidence:  m.Confidence,
			Method:      m.Method,
			MatchStatus: string(m.Status),
		})
	}
	for _, c := range rep.Missing {
		result.MissingInDB = append(result.MissingInDB, models.MissingUnit{
			ExternalID: c.ExternalID,
			Address:    c.Address,
			Floor:      c.Floor,
			Door:       c.Door,
			SizeSqm:    c.SizeSqm,
		})
	}
	for _, u := range rep.Extra {
		result.ExtraInDB = append(result.ExtraInDB, models.ExtraUnit{
			UnitID:     u.ID,
			ExternalID: u.ExternalID,
			Address:    u.Address,
			Floor:      u.Floor,
			Door:       u.Door,
		})
	}
	return result
}

// buildProfile derives the property profile for registry
// cross-referencing from the extraction output. The document-level
// property block wins; the address falls back to the first candidate.
func buildProfile(res *extract.Result, cands []extract.Candidate) anomaly.Profile {
	var p anomaly.Profile
	if len(cands) > 0 {
		p.Address = cands[0].Address
		p.Zipcode = cands[0].Zipcode
	}
	if res.Property == nil {
		return p
	}
	if v, ok := extract.ParseNumber(string(res.Property.PropertyValue)); ok {
		p.PropertyValue = float64(v)
	}
	if v, ok := extract.ParseNumber(string(res.Property.BuildingYear)); ok {
		p.BuildingYear = v
	}
	if v, ok := extract.ParseNumber(string(res.Property.AreaSqm)); ok {
		p.AreaSqm = float64(v)
	}
	if v, ok := extract.ParseNumber(string(res.Property.AnnualTax)); ok {
		p.AnnualTax = float64(v)
	}
	return p
}

func toAnomalyRecords(anomalies []anomaly.Anomaly) []models.AnomalyRecord {
	if len(anomalies) == 0 {
		return nil
	}
	out := make([]models.AnomalyRecord, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, models.AnomalyRecord{
			Type:        a.Type,
			Severity:    a.Severity,
			Field:       a.Field,
			Expected:    a.Expected,
			Actual:      a.Actual,
			Source:      a.Source,
			Description: a.Description,
		})
	}
	return out
}

func toRiskFlags(flags []anomaly.RiskFlag) []models.RiskFlag {
	if len(flags) == 0 {
		return nil
	}
	out := make([]models.RiskFlag, 0, len(flags))
	for _, f := range flags {
		out = append(out, models.RiskFlag{
			Flag:        f.Flag,
			Severity:    f.Severity,
			Description: f.Description,
		})
	}
	return out
}
