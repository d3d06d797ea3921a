package models

import "time"

// Unit is a canonical rent-roll record. The pipeline only reads these;
// the single write-back is ParsedUnit.MatchedUnitID on the job side.
type Unit struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time `gorm:"index"`
	ExternalID  string    `gorm:"size:64;index"`
	AssetID     *uint     `gorm:"index"`
	Address     string    `gorm:"size:512;not null"`
	Zipcode     string    `gorm:"size:16;index"`
	Floor       string    `gorm:"size:16"`
	Door        string    `gorm:"size:16"`
	SizeSqm     *int
	RentCurrent *int
	TenantName  *string `gorm:"size:255"`
	Status      string  `gorm:"size:32"` // occupied | vacant | terminated
}
