package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentroll/models"
)

// claimBatch bounds how many pending candidates a single ClaimNext call
// races for before giving up.
const claimBatch = 10

// Store is the durable job store. All worker coordination goes through
// the conditional updates here; no locks are held across processing.
type Store struct {
	db      *gorm.DB
	backoff BackoffPolicy
	log     *zap.Logger
}

func NewStore(db *gorm.DB, backoff BackoffPolicy, log *zap.Logger) *Store {
	if backoff == nil {
		backoff = ExponentialBackoff{Base: 2 * time.Second, Max: 60 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, backoff: backoff, log: log}
}

// EnqueueParams carries the upload metadata for a new job.
type EnqueueParams struct {
	FileName       string
	FilePath       string
	FileSizeBytes  int64
	AssetID        *uint
	CrossReference bool
	MaxRetries     int
}

// Enqueue creates a job in pending state. No processing starts here.
func (s *Store) Enqueue(ctx context.Context, p EnqueueParams) (*models.Job, error) {
	if p.FileName == "" || p.FilePath == "" {
		return nil, &ValidationError{Msg: "file name and path are required"}
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	job := models.Job{
		FileName:       p.FileName,
		FilePath:       p.FilePath,
		FileSizeBytes:  p.FileSizeBytes,
		Status:         models.JobStatusPending,
		MaxRetries:     p.MaxRetries,
		NextAttemptAt:  time.Now(),
		AssetID:        p.AssetID,
		CrossReference: p.CrossReference,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	s.log.Info("job enqueued", zap.Uint("job_id", job.ID), zap.String("file", job.FileName))
	return &job, nil
}

// ClaimNext atomically claims one claimable job and returns it, or nil
// when nothing is claimable. The conditional update's affected-row count
// is the success signal: two racing claimers can never win the same row.
// A caller that loses a race retries the next candidate, never blocks.
func (s *Store) ClaimNext(ctx context.Context) (*models.Job, error) {
	now := time.Now()
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ? AND next_attempt_at <= ?", models.JobStatusPending, now).
		Order("created_at asc").
		Limit(claimBatch).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		res := s.db.WithContext(ctx).Model(&models.Job{}).
			Where("id = ? AND status = ?", id, models.JobStatusPending).
			Updates(map[string]any{
				"status":     models.JobStatusProcessing,
				"started_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race for this row, try the next candidate
			continue
		}
		return s.Get(ctx, id)
	}
	return nil, nil
}

// Get loads a job by id.
func (s *Store) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status  models.JobStatus
	AssetID *uint
	Limit   int
}

// List returns jobs newest first, capped at 100 per page.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Model(&models.Job{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssetID != nil {
		q = q.Where("asset_id = ?", *f.AssetID)
	}
	var jobs []models.Job
	if err := q.Order("id desc").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateProgress moves a non-terminal job to the given status and
// percent. Percent is monotonic: a lower value than the last recorded
// one is logged and clamped rather than written.
func (s *Store) UpdateProgress(ctx context.Context, id uint, status models.JobStatus, percent int, message string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return &ConflictError{Msg: "job is terminal"}
	}
	if percent < job.Progress {
		s.log.Warn("non-monotonic progress clamped",
			zap.Uint("job_id", id), zap.Int("have", job.Progress), zap.Int("got", percent))
		percent = job.Progress
	}
	if percent > 100 {
		percent = 100
	}
	updates := map[string]any{
		"status":     status,
		"progress":   percent,
		"updated_at": time.Now(),
	}
	if message != "" {
		updates["status_message"] = message
	}
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status NOT IN ?", id, []models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed}).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Msg: "job is terminal"}
	}
	return nil
}

// Fail records a transient failure. With budget left the job goes back
// to pending after the backoff delay; otherwise it fails terminally.
func (s *Store) Fail(ctx context.Context, id uint, errorMessage string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return &ConflictError{Msg: "job is terminal"}
	}
	retry := job.RetryCount + 1
	now := time.Now()
	updates := map[string]any{
		"retry_count":   retry,
		"error_message": errorMessage,
		"updated_at":    now,
	}
	if retry < job.MaxRetries {
		updates["status"] = models.JobStatusPending
		updates["next_attempt_at"] = now.Add(s.backoff.Delay(retry))
		s.log.Warn("job failed, will retry",
			zap.Uint("job_id", id), zap.Int("retry", retry), zap.String("error", errorMessage))
	} else {
		updates["status"] = models.JobStatusFailed
		s.log.Error("job failed terminally",
			zap.Uint("job_id", id), zap.Int("retries", retry), zap.String("error", errorMessage))
	}
	return s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).Updates(updates).Error
}

// FailStructural fails a job terminally regardless of retry budget.
// Used for corrupt/empty/unsupported documents where retrying cannot help.
func (s *Store) FailStructural(ctx context.Context, id uint, errorMessage string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return &ConflictError{Msg: "job is terminal"}
	}
	s.log.Error("job failed structurally", zap.Uint("job_id", id), zap.String("error", errorMessage))
	return s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        models.JobStatusFailed,
			"retry_count":   job.MaxRetries,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		}).Error
}

// Complete stores the final report and marks the job completed. The
// report is marshalled by hand: gorm's json serializer only runs for
// struct-based writes, not map updates.
func (s *Store) Complete(ctx context.Context, id uint, result *models.JobResult) error {
	now := time.Now()
	updates := map[string]any{
		"status":       models.JobStatusCompleted,
		"progress":     100,
		"completed_at": now,
		"updated_at":   now,
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return err
		}
		updates["result"] = string(raw)
	}
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status NOT IN ?", id, []models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed}).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Msg: "job is terminal"}
	}
	s.log.Info("job completed", zap.Uint("job_id", id))
	return nil
}

// Cancel deletes a job and its parsed units. In-flight jobs cannot be
// cancelled. The delete itself is conditional on status, same pattern as
// ClaimNext: a claim racing in between the read and the delete keeps its
// row, it does not get yanked out from under the worker.
func (s *Store) Cancel(ctx context.Context, id uint) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.InFlight() {
		return &ConflictError{Msg: "job is being processed and cannot be cancelled"}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return cancelTx(tx, id)
	})
}

func cancelTx(tx *gorm.DB, id uint) error {
	res := tx.Where("id = ? AND status NOT IN ?", id,
		[]models.JobStatus{models.JobStatusProcessing, models.JobStatusExtracting, models.JobStatusMatching}).
		Delete(&models.Job{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Msg: "job is being processed and cannot be cancelled"}
	}
	return tx.Where("job_id = ?", id).Delete(&models.ParsedUnit{}).Error
}

// SaveParsedUnits persists the classified units for a job.
func (s *Store) SaveParsedUnits(ctx context.Context, units []models.ParsedUnit) error {
	if len(units) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&units).Error
}

// SaveAnalysis persists the audit record of a registry cross-reference run.
func (s *Store) SaveAnalysis(ctx context.Context, a *models.PropertyAnalysis) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// UnitsForAsset loads the canonical pool the matcher reconciles against,
// scoped to an asset when one is known.
func (s *Store) UnitsForAsset(ctx context.Context, assetID *uint) ([]models.Unit, error) {
	q := s.db.WithContext(ctx).Model(&models.Unit{})
	if assetID != nil {
		q = q.Where("asset_id = ?", *assetID)
	}
	var units []models.Unit
	if err := q.Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// RecoverStale returns jobs stuck in a processing-family status longer
// than the lease timeout to pending. Run at startup so a crashed worker
// does not strand its claims.
func (s *Store) RecoverStale(ctx context.Context, lease time.Duration) (int64, error) {
	cutoff := time.Now().Add(-lease)
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("status IN ? AND updated_at < ?",
			[]models.JobStatus{models.JobStatusProcessing, models.JobStatusExtracting, models.JobStatusMatching}, cutoff).
		Updates(map[string]any{
			"status":          models.JobStatusPending,
			"next_attempt_at": time.Now(),
			"error_message":   "recovered after stale lease",
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Warn("recovered stale jobs", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
