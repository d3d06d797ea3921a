// Package match reconciles extracted unit candidates against the
// canonical rent-roll store. Classification is a pure function of the
// candidate set and the canonical pool: same inputs, same report.
package match

import (
	"fmt"
	"strings"

	"rentroll/models"
	"rentroll/pkg/extract"
)

// Method labels identifying which rule produced a match.
const (
	MethodExact      = "exact"
	MethodSimilarity = "similarity"
)

// Match pairs one candidate with the canonical unit it reconciled to.
type Match struct {
	Candidate  extract.Candidate
	Unit       models.Unit
	Confidence float64
	Method     string
	Status     models.MatchStatus
}

// Report is the full matching outcome for one document.
type Report struct {
	Matches []Match             // matched + fuzzy, in candidate order
	Missing []extract.Candidate // in document, absent from store
	Extra   []models.Unit       // in store, absent from document
	Stats   models.MatchStats
	Summary string
}

// exactKey builds the deterministic lookup key. Address, floor and door
// must be present; zipcode participates when known so that an address
// reused across towns cannot collide.
func exactKey(address, zipcode, floor, door string) (string, bool) {
	a, f, d := normField(address), normField(floor), normField(door)
	if a == "" || f == "" || d == "" {
		return "", false
	}
	return a + "|" + normField(zipcode) + "|" + f + "|" + d, true
}

// Classify reconciles every candidate against the pool and derives the
// extra-in-registry list from whatever the candidates did not claim.
// Each canonical unit can be claimed at most once.
func Classify(cands []extract.Candidate, pool []models.Unit) *Report {
	byKey := make(map[string]int, len(pool))
	for i, u := range pool {
		if k, ok := exactKey(u.Address, u.Zipcode, u.Floor, u.Door); ok {
			byKey[k] = i
		}
	}

	claimed := make(map[int]bool, len(pool))
	rep := &Report{}

	for _, c := range cands {
		if k, ok := exactKey(c.Address, c.Zipcode, c.Floor, c.Door); ok {
			if i, hit := byKey[k]; hit && !claimed[i] {
				claimed[i] = true
				rep.Matches = append(rep.Matches, Match{
					Candidate:  c,
					Unit:       pool[i],
					Confidence: 1.0,
					Method:     MethodExact,
					Status:     models.MatchStatusMatched,
				})
				continue
			}
		}

		best, bestScore := -1, 0.0
		for i, u := range pool {
			if claimed[i] {
				continue
			}
			s := Score(c, u)
			if s < ConfidenceFloor {
				continue
			}
			switch {
			case best == -1, s > bestScore+tieEpsilon:
				best, bestScore = i, s
			case s >= bestScore-tieEpsilon:
				// tie: prefer exact floor+door, then the freshest record
				if preferOver(c, u, pool[best]) {
					best, bestScore = i, s
				}
			}
		}
		if best == -1 {
			rep.Missing = append(rep.Missing, c)
			continue
		}
		claimed[best] = true
		status := models.MatchStatusFuzzy
		if bestScore >= HighThreshold {
			status = models.MatchStatusMatched
		}
		rep.Matches = append(rep.Matches, Match{
			Candidate:  c,
			Unit:       pool[best],
			Confidence: bestScore,
			Method:     MethodSimilarity,
			Status:     status,
		})
	}

	for i, u := range pool {
		if !claimed[i] {
			rep.Extra = append(rep.Extra, u)
		}
	}

	rep.Stats = buildStats(cands, pool, rep)
	rep.Summary = buildSummary(rep.Stats)
	return rep
}

// preferOver decides a tie between challenger u and the incumbent.
func preferOver(c extract.Candidate, u, incumbent models.Unit) bool {
	uExact := positionScore(c.Floor, c.Door, u.Floor, u.Door) == 1.0
	inExact := positionScore(c.Floor, c.Door, incumbent.Floor, incumbent.Door) == 1.0
	if uExact != inExact {
		return uExact
	}
	return u.UpdatedAt.After(incumbent.UpdatedAt)
}

func buildStats(cands []extract.Candidate, pool []models.Unit, rep *Report) models.MatchStats {
	st := models.MatchStats{
		TotalExtracted: len(cands),
		TotalCanonical: len(pool),
		Missing:        len(rep.Missing),
		Extra:          len(rep.Extra),
	}
	sum := 0.0
	for _, m := range rep.Matches {
		if m.Status == models.MatchStatusMatched {
			st.Matched++
		} else {
			st.Fuzzy++
		}
		sum += m.Confidence
	}
	if n := len(rep.Matches); n > 0 {
		st.AvgConfidence = sum / float64(n)
	}
	return st
}

func buildSummary(st models.MatchStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Matched %d of %d extracted units against %d canonical records",
		st.Matched+st.Fuzzy, st.TotalExtracted, st.TotalCanonical)
	if st.Fuzzy > 0 {
		fmt.Fprintf(&sb, " (%d fuzzy)", st.Fuzzy)
	}
	fmt.Fprintf(&sb, "; %d missing in registry, %d extra in registry", st.Missing, st.Extra)
	if st.Matched+st.Fuzzy > 0 {
		fmt.Fprintf(&sb, "; average confidence %.2f", st.AvgConfidence)
	}
	sb.WriteString(".")
	return sb.String()
}

// ToParsedUnits converts a report into the rows persisted for the job.
func ToParsedUnits(jobID uint, rep *Report) []models.ParsedUnit {
	units := make([]models.ParsedUnit, 0, len(rep.Matches)+len(rep.Missing))
	for _, m := range rep.Matches {
		pu := candidateRow(jobID, m.Candidate)
		pu.MatchStatus = m.Status
		unitID := m.Unit.ID
		pu.MatchedUnitID = &unitID
		pu.MatchConfidence = m.Confidence
		pu.MatchMethod = m.Method
		units = append(units, pu)
	}
	for _, c := range rep.Missing {
		pu := candidateRow(jobID, c)
		pu.MatchStatus = models.MatchStatusMissing
		units = append(units, pu)
	}
	return units
}

func candidateRow(jobID uint, c extract.Candidate) models.ParsedUnit {
	pu := models.ParsedUnit{
		JobID:      jobID,
		ExternalID: c.ExternalID,
		Address:    c.Address,
		Zipcode:    c.Zipcode,
		Floor:      c.Floor,
		Door:       c.Door,
	}
	if c.SizeSqm > 0 {
		v := c.SizeSqm
		pu.SizeSqm = &v
	}
	if c.RentCurrent > 0 {
		v := c.RentCurrent
		pu.RentCurrent = &v
	}
	if c.TenantName != "" {
		v := c.TenantName
		pu.TenantName = &v
	}
	return pu
}
