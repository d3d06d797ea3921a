package extract

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Unit status free text canonicalizes to one of these.
const (
	StatusOccupied   = "occupied"
	StatusVacant     = "vacant"
	StatusTerminated = "terminated"
)

// Normalize converts raw extraction rows into clean candidates, applying
// the defaulting rules. Candidates without a unit identifier are dropped
// entirely: a null-keyed row can never be reconciled. Returns the
// candidates and the number of dropped rows.
func Normalize(raw []RawUnit, now time.Time) ([]Candidate, int) {
	cands := make([]Candidate, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		id := strings.TrimSpace(string(r.UnitID))
		if id == "" {
			dropped++
			continue
		}
		c := Candidate{
			ExternalID: id,
			Address:    strings.TrimSpace(string(r.Address)),
			Zipcode:    strings.TrimSpace(string(r.Zipcode)),
			Floor:      strings.TrimSpace(string(r.Floor)),
			Door:       strings.TrimSpace(string(r.Door)),
			TenantName: strings.TrimSpace(string(r.TenantName)),
			Status:     CanonicalStatus(string(r.Status)),
		}
		c.SizeSqm, _ = ParseNumber(string(r.SizeSqm))
		c.RentCurrent, _ = ParseNumber(string(r.RentCurrent))

		if ls := strings.TrimSpace(string(r.LeaseStart)); ls != "" {
			if t, ok := parseDate(ls); ok {
				c.LeaseStart = t
			} else {
				// Observed source behavior: unparsable dates default to
				// "now". Kept, but surfaced so callers can see it.
				c.LeaseStart = now
				c.Defaulted = append(c.Defaulted, "lease_start")
			}
		}
		cands = append(cands, c)
	}
	return cands, dropped
}

// ParseNumber reads the first numeric token out of noisy input
// ("1.234 kr", "85 m2") and rounds to a whole unit. Unit suffixes end
// the token; digits inside them never leak into the value. Returns
// 0, false on unparsable input.
func ParseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	start, end := -1, len(s)
	for i, r := range s {
		if start == -1 {
			if r >= '0' && r <= '9' {
				start = i
				if i > 0 && s[i-1] == '-' {
					start = i - 1
				}
			}
			continue
		}
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			end = i
			break
		}
	}
	if start == -1 {
		return 0, false
	}
	token := strings.TrimRight(s[start:end], ".,")
	// Danish formats use '.' as thousands separator and ',' as decimal
	// mark. A trailing two-digit group after the last separator is read
	// as decimals, everything else as grouping.
	cleaned := normalizeSeparators(token)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(f)), true
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	sep := lastDot
	if lastComma > sep {
		sep = lastComma
	}
	if sep == -1 {
		return s
	}
	frac := s[sep+1:]
	drop := func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}
	if len(frac) > 0 && len(frac) <= 2 && !strings.ContainsAny(frac, ".,") {
		intPart := strings.Map(drop, s[:sep])
		return intPart + "." + frac
	}
	return strings.Map(drop, s)
}

var dateLayouts = []string{
	"2006-01-02", "02-01-2006", "02.01.2006", "02/01/2006", "2006-01-02T15:04:05Z07:00",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CanonicalStatus maps free-text unit status to the canonical set,
// defaulting to vacant when unrecognized.
func CanonicalStatus(s string) string {
	low := strings.ToLower(strings.TrimSpace(s))
	switch {
	case low == "":
		return StatusVacant
	case strings.Contains(low, "occupied"), strings.Contains(low, "udlejet"),
		strings.Contains(low, "let"), strings.Contains(low, "leased"):
		return StatusOccupied
	case strings.Contains(low, "terminat"), strings.Contains(low, "opsagt"),
		strings.Contains(low, "notice"):
		return StatusTerminated
	case strings.Contains(low, "vacant"), strings.Contains(low, "ledig"),
		strings.Contains(low, "tom"), strings.Contains(low, "empty"):
		return StatusVacant
	default:
		return StatusVacant
	}
}
