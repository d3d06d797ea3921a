package models

import "time"

// JobStatus is the processing state of a document job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusExtracting JobStatus = "extracting"
	JobStatusMatching   JobStatus = "matching"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status allows no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// InFlight reports whether a worker currently holds the job.
func (s JobStatus) InFlight() bool {
	return s == JobStatusProcessing || s == JobStatusExtracting || s == JobStatusMatching
}

// Job represents one PDF rent-roll processing request.
type Job struct {
	ID            uint `gorm:"primaryKey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	FileName      string    `gorm:"size:255;not null"`
	FilePath      string    `gorm:"size:512;not null"` // opaque storage reference
	FileSizeBytes int64     `gorm:"not null"`
	Status        JobStatus `gorm:"size:32;not null;default:pending;index"`
	Progress      int       `gorm:"not null;default:0"`
	StatusMessage string    `gorm:"size:255"` // last human-readable progress message
	ErrorMessage  string    `gorm:"size:1024"`
	RetryCount    int       `gorm:"not null;default:0"`
	MaxRetries    int       `gorm:"not null;default:3"`
	// NextAttemptAt gates re-claiming after a retry backoff.
	NextAttemptAt time.Time `gorm:"index"`
	AssetID       *uint     `gorm:"index"` // portfolio scoping (nullable)
	// CrossReference requests registry cross-checking alongside matching.
	CrossReference bool `gorm:"default:false"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Result         *JobResult `gorm:"serializer:json"`
	// Units are owned by the job and cascade on delete.
	Units []ParsedUnit `gorm:"foreignKey:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// CanRetry reports whether the job has retry budget left.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// JobResult is the final report payload stored on a completed job.
type JobResult struct {
	Summary      string          `json:"summary"`
	Stats        MatchStats      `json:"stats"`
	MatchedUnits []MatchedUnit   `json:"matchedUnits"`
	MissingInDB  []MissingUnit   `json:"missingInDb"`
	ExtraInDB    []ExtraUnit     `json:"extraInDb"`
	Anomalies    []AnomalyRecord `json:"anomalies,omitempty"`
	RiskFlags    []RiskFlag      `json:"riskFlags,omitempty"`
}

// MatchStats aggregates the matching outcome for a job.
type MatchStats struct {
	TotalExtracted int     `json:"totalExtracted"`
	TotalCanonical int     `json:"totalCanonical"`
	Matched        int     `json:"matched"`
	Fuzzy          int     `json:"fuzzy"`
	Missing        int     `json:"missing"`
	Extra          int     `json:"extra"`
	AvgConfidence  float64 `json:"avgConfidence"`
}

// MatchedUnit pairs an extracted candidate with its canonical record.
type MatchedUnit struct {
	ExternalID  string  `json:"externalId"`
	Address     string  `json:"address"`
	Floor       string  `json:"floor,omitempty"`
	Door        string  `json:"door,omitempty"`
	UnitID      uint    `json:"unitId"`
	Confidence  float64 `json:"confidence"`
	Method      string  `json:"method"`
	MatchStatus string  `json:"matchStatus"`
}

// MissingUnit is present in the document but absent from the canonical store.
type MissingUnit struct {
	ExternalID string `json:"externalId"`
	Address    string `json:"address"`
	Floor      string `json:"floor,omitempty"`
	Door       string `json:"door,omitempty"`
	SizeSqm    int    `json:"sizeSqm,omitempty"`
}

// ExtraUnit is present in the canonical store but absent from the document.
type ExtraUnit struct {
	UnitID     uint   `json:"unitId"`
	ExternalID string `json:"externalId"`
	Address    string `json:"address"`
	Floor      string `json:"floor,omitempty"`
	Door       string `json:"door,omitempty"`
}

// AnomalyRecord is one registry discrepancy included in the job report.
type AnomalyRecord struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Field       string `json:"field,omitempty"`
	Expected    string `json:"expectedValue,omitempty"`
	Actual      string `json:"actualValue,omitempty"`
	Source      string `json:"source"`
	Description string `json:"description"`
}

// RiskFlag is an aggregate signal derived from a set of anomalies.
type RiskFlag struct {
	Flag        string `json:"flag"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}
