package match

import (
	"strings"

	"github.com/agext/levenshtein"

	"rentroll/models"
	"rentroll/pkg/extract"
)

// Blend weights for the similarity score. Address carries the most
// signal; floor/door equality, size proximity and tenant name refine it.
const (
	weightAddress  = 0.50
	weightPosition = 0.20
	weightSize     = 0.15
	weightTenant   = 0.15

	// sizeTolerance is the relative band inside which two areas still
	// count as proximate.
	sizeTolerance = 0.15

	// ConfidenceFloor is the minimum similarity for any fuzzy pairing.
	ConfidenceFloor = 0.50
	// HighThreshold promotes a fuzzy pairing to a full match.
	HighThreshold = 0.85

	// tieEpsilon is the score band within which two canonical candidates
	// count as tied and the tie-break rules apply.
	tieEpsilon = 0.02
)

var levParams = levenshtein.NewParams()

// normField lowercases, trims and collapses inner whitespace so that
// formatting noise does not defeat comparisons.
func normField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// AddressSimilarity scores two addresses in [0,1] by edit distance.
// Empty on either side scores zero: absence is not evidence.
func AddressSimilarity(a, b string) float64 {
	a, b = normField(a), normField(b)
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, levParams)
}

// positionScore rewards floor/door agreement: both equal scores 1, one
// equal scores 0.5, otherwise 0.
func positionScore(cFloor, cDoor, uFloor, uDoor string) float64 {
	cFloor, cDoor = normField(cFloor), normField(cDoor)
	uFloor, uDoor = normField(uFloor), normField(uDoor)
	score := 0.0
	if cFloor != "" && cFloor == uFloor {
		score += 0.5
	}
	if cDoor != "" && cDoor == uDoor {
		score += 0.5
	}
	return score
}

// SizeProximity scores how close two areas are inside the tolerance
// band. Identical sizes score 1; at or beyond the band the score is 0.
func SizeProximity(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	max := a
	if b > max {
		max = b
	}
	ratio := float64(abs(a-b)) / float64(max)
	if ratio >= sizeTolerance {
		return 0
	}
	return 1 - ratio/sizeTolerance
}

func tenantSimilarity(a, b string) float64 {
	a, b = normField(a), normField(b)
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, levParams)
}

// Score blends the sub-scores into one confidence value in [0,1].
func Score(c extract.Candidate, u models.Unit) float64 {
	tenant := ""
	if u.TenantName != nil {
		tenant = *u.TenantName
	}
	size := 0
	if u.SizeSqm != nil {
		size = *u.SizeSqm
	}
	return weightAddress*AddressSimilarity(c.Address, u.Address) +
		weightPosition*positionScore(c.Floor, c.Door, u.Floor, u.Door) +
		weightSize*SizeProximity(c.SizeSqm, size) +
		weightTenant*tenantSimilarity(c.TenantName, tenant)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
