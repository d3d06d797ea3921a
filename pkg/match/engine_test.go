package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentroll/models"
	"rentroll/pkg/extract"
)

func intp(v int) *int { return &v }

func unitPool() []models.Unit {
	return []models.Unit{
		{ID: 1, Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv", SizeSqm: intp(85)},
		{ID: 2, Address: "Gertrude Steins Vej 4", Floor: "2", Door: "th", SizeSqm: intp(90)},
		{ID: 3, Address: "Hovedgaden 12", Floor: "1", Door: "mf", SizeSqm: intp(120)},
	}
}

func TestClassifyExactMatch(t *testing.T) {
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv", SizeSqm: 85},
	}
	rep := Classify(cands, unitPool())
	require.Len(t, rep.Matches, 1)
	m := rep.Matches[0]
	assert.Equal(t, uint(1), m.Unit.ID)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Equal(t, MethodExact, m.Method)
	assert.Equal(t, models.MatchStatusMatched, m.Status)
	assert.Len(t, rep.Extra, 2, "unclaimed pool units are extra")
}

func TestClassifyTypoFallsToFuzzy(t *testing.T) {
	// transposed letters in the street name defeat the exact key but
	// leave the similarity score well above the floor
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Gertrude Stiens Vej 4", Floor: "2", Door: "tv", SizeSqm: 85},
	}
	rep := Classify(cands, unitPool())
	require.Len(t, rep.Matches, 1)
	m := rep.Matches[0]
	assert.Equal(t, uint(1), m.Unit.ID)
	assert.Equal(t, MethodSimilarity, m.Method)
	assert.Equal(t, models.MatchStatusFuzzy, m.Status)
	assert.GreaterOrEqual(t, m.Confidence, ConfidenceFloor)
	assert.Less(t, m.Confidence, HighThreshold)
}

func TestClassifySimilarityPromotedToMatched(t *testing.T) {
	tenant := "Jens Hansen"
	pool := []models.Unit{
		{ID: 1, Address: "Hovedgaden 12", Floor: "1", Door: "mf", SizeSqm: intp(120), TenantName: &tenant},
	}
	// same address and tenant but no floor, so no exact key
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Hovedgaden 12", Door: "mf", SizeSqm: 120, TenantName: "Jens Hansen"},
	}
	rep := Classify(cands, pool)
	require.Len(t, rep.Matches, 1)
	m := rep.Matches[0]
	assert.Equal(t, MethodSimilarity, m.Method)
	assert.Equal(t, models.MatchStatusMatched, m.Status)
	assert.GreaterOrEqual(t, m.Confidence, HighThreshold)
}

func TestClassifyBelowFloorIsMissing(t *testing.T) {
	cands := []extract.Candidate{
		{ExternalID: "U-9", Address: "Helt Anden Gade 99", Floor: "5", Door: "d"},
	}
	rep := Classify(cands, unitPool())
	assert.Empty(t, rep.Matches)
	require.Len(t, rep.Missing, 1)
	assert.Equal(t, "U-9", rep.Missing[0].ExternalID)
	assert.Len(t, rep.Extra, 3)
}

func TestClassifyClaimsEachUnitOnce(t *testing.T) {
	pool := []models.Unit{
		{ID: 1, Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv", SizeSqm: intp(85)},
	}
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv", SizeSqm: 85},
		{ExternalID: "U-2", Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv", SizeSqm: 85},
	}
	rep := Classify(cands, pool)
	require.Len(t, rep.Matches, 1)
	assert.Equal(t, "U-1", rep.Matches[0].Candidate.ExternalID, "first claimant wins")
	require.Len(t, rep.Missing, 1)
	assert.Equal(t, "U-2", rep.Missing[0].ExternalID)
	assert.Empty(t, rep.Extra)
}

func TestClassifyTieBreakPrefersExactPosition(t *testing.T) {
	// the typo keeps the exact key from firing; the two pool units then
	// score within the tie band and position exactness decides
	old := time.Now().Add(-time.Hour)
	pool := []models.Unit{
		{ID: 1, Address: "Hovedgaden 12", Floor: "2", Door: "mf", SizeSqm: intp(107), UpdatedAt: time.Now()},
		{ID: 2, Address: "Hovedgaden 12", Floor: "2", Door: "th", UpdatedAt: old},
	}
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Hovedgade 12", Floor: "2", Door: "th", SizeSqm: 100},
	}
	rep := Classify(cands, pool)
	require.Len(t, rep.Matches, 1)
	assert.Equal(t, uint(2), rep.Matches[0].Unit.ID, "exact floor+door beats recency")
}

func TestClassifyIsDeterministic(t *testing.T) {
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Gertrude Stiens Vej 4", Floor: "2", Door: "tv", SizeSqm: 85},
		{ExternalID: "U-2", Address: "Hovedgaden 12", Floor: "1", Door: "mf", SizeSqm: 120},
		{ExternalID: "U-3", Address: "Ukendt Vej 7"},
	}
	a := Classify(cands, unitPool())
	b := Classify(cands, unitPool())
	assert.Equal(t, a, b)
}

func TestClassifyStatsAndSummary(t *testing.T) {
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv", SizeSqm: 85},
		{ExternalID: "U-2", Address: "Gertrude Stiens Vej 4", Floor: "2", Door: "th", SizeSqm: 90},
		{ExternalID: "U-3", Address: "Ukendt Vej 7", Floor: "9", Door: "x"},
	}
	rep := Classify(cands, unitPool())
	st := rep.Stats
	assert.Equal(t, 3, st.TotalExtracted)
	assert.Equal(t, 3, st.TotalCanonical)
	assert.Equal(t, 1, st.Matched)
	assert.Equal(t, 1, st.Fuzzy)
	assert.Equal(t, 1, st.Missing)
	assert.Equal(t, 1, st.Extra)
	assert.Greater(t, st.AvgConfidence, 0.0)
	assert.Contains(t, rep.Summary, "Matched 2 of 3")
	assert.Contains(t, rep.Summary, "1 fuzzy")
}

func TestToParsedUnits(t *testing.T) {
	cands := []extract.Candidate{
		{ExternalID: "U-1", Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv", SizeSqm: 85, TenantName: "Jens"},
		{ExternalID: "U-9", Address: "Ukendt Vej 7"},
	}
	rep := Classify(cands, unitPool())
	rows := ToParsedUnits(42, rep)
	require.Len(t, rows, 2)

	matched := rows[0]
	assert.Equal(t, uint(42), matched.JobID)
	assert.Equal(t, models.MatchStatusMatched, matched.MatchStatus)
	require.NotNil(t, matched.MatchedUnitID)
	assert.Equal(t, uint(1), *matched.MatchedUnitID)
	assert.Equal(t, MethodExact, matched.MatchMethod)
	require.NotNil(t, matched.SizeSqm)
	assert.Equal(t, 85, *matched.SizeSqm)
	require.NotNil(t, matched.TenantName)
	assert.Equal(t, "Jens", *matched.TenantName)

	missing := rows[1]
	assert.Equal(t, "U-9", missing.ExternalID)
	assert.Equal(t, models.MatchStatusMissing, missing.MatchStatus)
	assert.Nil(t, missing.MatchedUnitID)
}
