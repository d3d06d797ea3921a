// Package textextract wraps the external PDF-to-text collaborator. The
// core consumes plain text plus per-page metadata; the conversion itself
// happens in an external service. Local pdfcpu checks catch corrupt or
// encrypted files before any network round trip.
package textextract

import (
	"context"
	"regexp"
	"strings"
)

// Page is one page of extracted text plus the signals the page
// prioritizer uses.
type Page struct {
	Number      int    `json:"number"`
	Text        string `json:"text"`
	TableLike   bool   `json:"table_like"`
	KeywordHits int    `json:"keyword_hits"`
}

// Extraction is the text-service output for one document.
type Extraction struct {
	Text               string `json:"text"`
	PageCount          int    `json:"page_count"`
	HasTableIndicators bool   `json:"has_table_indicators"`
	Pages              []Page `json:"pages"`
}

// Service converts a stored PDF into text plus page metadata.
type Service interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// unitKeywords are the lease/unit terms that mark a page as interesting
// for unit extraction. Danish rent rolls mix local and English terms.
var unitKeywords = []string{
	"lejemål", "lejer", "husleje", "unit", "lease", "tenant", "rent", "m2", "sqm", "etage",
}

var numberRunRE = regexp.MustCompile(`\d[\d.,]{2,}`)

// CountKeywords counts unit/lease keyword occurrences in page text.
func CountKeywords(text string) int {
	low := strings.ToLower(text)
	n := 0
	for _, kw := range unitKeywords {
		n += strings.Count(low, kw)
	}
	return n
}

// LooksTabular guesses whether a page is table-like: many short lines
// with runs of numbers reads as a rent-roll table, prose does not.
func LooksTabular(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 5 {
		return false
	}
	numeric := 0
	for _, ln := range lines {
		if numberRunRE.MatchString(ln) {
			numeric++
		}
	}
	return numeric*2 >= len(lines)
}
