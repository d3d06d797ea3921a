package models

import "time"

// PropertyAnalysis is the persisted audit record of one registry
// cross-reference run. Anomalies reference the analysis by id but the
// analysis does not own registry data.
type PropertyAnalysis struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	JobID     uint   `gorm:"index;not null"`
	Address   string `gorm:"size:512"`
	Zipcode   string `gorm:"size:16"`
	Anomalies []AnomalyRecord `gorm:"serializer:json"`
	RiskFlags []RiskFlag      `gorm:"serializer:json"`
}
