package models

import "time"

// MatchStatus classifies how an extracted unit reconciled against the store.
type MatchStatus string

const (
	MatchStatusMatched MatchStatus = "matched"
	MatchStatusFuzzy   MatchStatus = "fuzzy"
	MatchStatusMissing MatchStatus = "missing"
)

// ParsedUnit is one candidate unit record extracted from a document.
// Rows are written once by the matching stage and never mutated after
// the owning job completes.
type ParsedUnit struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	JobID      uint   `gorm:"index;not null"`
	ExternalID string `gorm:"size:64;not null"` // unit identifier from the document
	Address    string `gorm:"size:512"`
	Zipcode    string `gorm:"size:16"`
	Floor      string `gorm:"size:16"`
	Door       string `gorm:"size:16"`
	SizeSqm    *int
	RentCurrent *int
	TenantName  *string     `gorm:"size:255"`
	MatchStatus MatchStatus `gorm:"size:16;not null;index"`
	// MatchedUnitID references the canonical unit this row reconciled to.
	MatchedUnitID   *uint   `gorm:"index"`
	MatchConfidence float64 `gorm:"not null;default:0"`
	MatchMethod     string  `gorm:"size:32"`
}
