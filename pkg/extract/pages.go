package extract

import (
	"sort"
	"strings"

	"rentroll/pkg/textextract"
)

// DefaultCharBudget bounds how much text goes to the extraction backend.
// Rent-roll tables concentrate on a few pages; sending the whole memo
// mostly adds cost and latency.
const DefaultCharBudget = 22000

// SelectText assembles the extraction input from the highest-priority
// pages, capped at budget characters. Table-like pages come first, then
// pages with unit/lease keyword hits, then document order.
func SelectText(pages []textextract.Page, budget int) string {
	if budget <= 0 {
		budget = DefaultCharBudget
	}
	ordered := make([]textextract.Page, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.TableLike != b.TableLike {
			return a.TableLike
		}
		if a.KeywordHits != b.KeywordHits {
			return a.KeywordHits > b.KeywordHits
		}
		return a.Number < b.Number
	})

	var sb strings.Builder
	for _, p := range ordered {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		remaining := budget - sb.Len()
		if remaining <= 0 {
			break
		}
		if len(text) > remaining {
			text = text[:remaining]
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String()
}
