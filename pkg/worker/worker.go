// Package worker drives claimed jobs through the extraction and
// matching stages. Multiple workers can run against the same store;
// coordination happens only through the store's atomic claim.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rentroll/models"
	"rentroll/pkg/anomaly"
	"rentroll/pkg/extract"
	"rentroll/pkg/match"
	"rentroll/pkg/progress"
	"rentroll/pkg/queue"
	"rentroll/pkg/textextract"
)

// Config bounds the worker's polling and external calls.
type Config struct {
	PollInterval time.Duration
	CallTimeout  time.Duration
	CharBudget   int
}

// Worker runs the claim/process loop.
type Worker struct {
	store      *queue.Store
	text       textextract.Service
	extractor  extract.Extractor
	registries []anomaly.Registry
	pub        *progress.Publisher
	log        *zap.Logger
	cfg        Config
}

func New(store *queue.Store, text textextract.Service, extractor extract.Extractor,
	registries []anomaly.Registry, pub *progress.Publisher, log *zap.Logger, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 90 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		store:      store,
		text:       text,
		extractor:  extractor,
		registries: registries,
		pub:        pub,
		log:        log,
		cfg:        cfg,
	}
}

// Run polls for claimable jobs until the context is cancelled. One
// job's failure never terminates the loop.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", zap.Duration("poll_interval", w.cfg.PollInterval))
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		// drain everything claimable before going back to sleep
		for {
			claimed, err := w.RunOnce(ctx)
			if err != nil {
				w.log.Error("claim failed", zap.Error(err))
				break
			}
			if !claimed || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			w.log.Info("worker shutting down")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims and processes at most one job. Returns whether a job
// was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.process(ctx, job)
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *models.Job) {
	w.log.Info("processing job", zap.Uint("job_id", job.ID), zap.String("file", job.FileName))
	if err := w.run(ctx, job); err != nil {
		w.fail(ctx, job, err)
	}
}

// run drives one claimed job through its stages.
func (w *Worker) run(ctx context.Context, job *models.Job) error {
	w.report(ctx, job.ID, models.JobStatusExtracting, 10, "extracting text")

	ex, err := w.extractText(ctx, job.FilePath)
	if err != nil {
		return err
	}
	w.report(ctx, job.ID, models.JobStatusExtracting, 20, fmt.Sprintf("selected pages from %d", ex.PageCount))

	text := extract.SelectText(ex.Pages, w.cfg.CharBudget)
	w.report(ctx, job.ID, models.JobStatusExtracting, 35, "extracting unit records")

	res, err := w.extractUnits(ctx, text)
	if err != nil {
		return err
	}
	cands, dropped := extract.Normalize(res.Units, time.Now())
	if dropped > 0 {
		w.log.Warn("dropped candidates without unit id", zap.Uint("job_id", job.ID), zap.Int("dropped", dropped))
	}
	for _, c := range cands {
		for _, f := range c.Defaulted {
			w.log.Warn("field defaulted during normalization",
				zap.Uint("job_id", job.ID), zap.String("unit", c.ExternalID), zap.String("field", f))
		}
	}

	w.report(ctx, job.ID, models.JobStatusMatching, 70, "matching against canonical records")

	var rep *match.Report
	var anomalies []anomaly.Anomaly
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pool, err := w.store.UnitsForAsset(gctx, job.AssetID)
		if err != nil {
			return &queue.TransientError{Msg: "canonical pool unavailable", Err: err}
		}
		rep = match.Classify(cands, pool)
		return nil
	})
	if job.CrossReference && len(w.registries) > 0 {
		g.Go(func() error {
			var err error
			anomalies, err = w.crossReference(gctx, job, res, cands)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.report(ctx, job.ID, models.JobStatusMatching, 90, "building report")

	if err := w.store.SaveParsedUnits(ctx, match.ToParsedUnits(job.ID, rep)); err != nil {
		return &queue.TransientError{Msg: "persist parsed units", Err: err}
	}
	result := buildResult(rep, anomalies)
	if err := w.store.Complete(ctx, job.ID, result); err != nil {
		return err
	}
	w.pub.Publish(job.ID, progress.Event{
		Type: "progress", Status: string(models.JobStatusCompleted), Progress: 100, Message: result.Summary,
	})
	w.pub.Publish(job.ID, progress.Event{Type: "results", Data: result})
	w.pub.Close(job.ID)
	w.log.Info("job completed", zap.Uint("job_id", job.ID), zap.String("summary", result.Summary))
	return nil
}

func (w *Worker) extractText(ctx context.Context, path string) (*textextract.Extraction, error) {
	cctx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()
	return w.text.Extract(cctx, path)
}

func (w *Worker) extractUnits(ctx context.Context, text string) (*extract.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()
	return w.extractor.Extract(cctx, text)
}

// crossReference builds the property profile and compares it against
// every configured registry. The audit record is persisted alongside
// the job.
func (w *Worker) crossReference(ctx context.Context, job *models.Job, res *extract.Result, cands []extract.Candidate) ([]anomaly.Anomaly, error) {
	profile := buildProfile(res, cands)
	if profile.Address == "" {
		w.log.Warn("cross-reference skipped, no address extracted", zap.Uint("job_id", job.ID))
		return nil, nil
	}
	snapshots := make([]anomaly.Snapshot, 0, len(w.registries))
	for _, reg := range w.registries {
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
		snap, err := reg.Lookup(cctx, profile.Address, profile.Zipcode)
		cancel()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	anomalies := anomaly.Compare(profile, snapshots)

	rec := &models.PropertyAnalysis{
		JobID:     job.ID,
		Address:   profile.Address,
		Zipcode:   profile.Zipcode,
		Anomalies: toAnomalyRecords(anomalies),
		RiskFlags: toRiskFlags(anomaly.DeriveRiskFlags(anomalies)),
	}
	if err := w.store.SaveAnalysis(ctx, rec); err != nil {
		return nil, &queue.TransientError{Msg: "persist analysis", Err: err}
	}
	return anomalies, nil
}

// fail classifies the error and finalizes or re-queues the job.
// Structural failures never consume retry cycles.
func (w *Worker) fail(ctx context.Context, job *models.Job, err error) {
	msg := err.Error()
	if queue.IsStructural(err) {
		if ferr := w.store.FailStructural(ctx, job.ID, msg); ferr != nil {
			w.log.Error("fail(structural) store update failed", zap.Uint("job_id", job.ID), zap.Error(ferr))
		}
	} else {
		if ferr := w.store.Fail(ctx, job.ID, msg); ferr != nil {
			w.log.Error("fail store update failed", zap.Uint("job_id", job.ID), zap.Error(ferr))
		}
	}
	after, gerr := w.store.Get(ctx, job.ID)
	if gerr != nil {
		w.log.Error("reload after fail", zap.Uint("job_id", job.ID), zap.Error(gerr))
		return
	}
	w.pub.Publish(job.ID, progress.Event{
		Type: "progress", Status: string(after.Status), Progress: after.Progress, Message: msg,
	})
	if after.Status.Terminal() {
		w.pub.Publish(job.ID, progress.Event{Type: "done"})
		w.pub.Close(job.ID)
	}
}

// report persists a progress milestone and mirrors it to subscribers.
func (w *Worker) report(ctx context.Context, jobID uint, status models.JobStatus, percent int, message string) {
	if err := w.store.UpdateProgress(ctx, jobID, status, percent, message); err != nil {
		w.log.Warn("progress update failed", zap.Uint("job_id", jobID), zap.Error(err))
	}
	w.pub.Publish(jobID, progress.Event{
		Type: "progress", Status: string(status), Progress: percent, Message: message,
	})
}
