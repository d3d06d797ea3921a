package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentroll/models"
	"rentroll/pkg/anomaly"
	"rentroll/pkg/extract"
	"rentroll/pkg/progress"
	"rentroll/pkg/queue"
	"rentroll/pkg/textextract"
)

type fakeText struct {
	ex  *textextract.Extraction
	err error
}

func (f *fakeText) Extract(ctx context.Context, path string) (*textextract.Extraction, error) {
	return f.ex, f.err
}

type fakeExtractor struct {
	res *extract.Result
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*extract.Result, error) {
	return f.res, f.err
}

type fakeRegistry struct {
	name string
	snap anomaly.Snapshot
	err  error
}

func (f *fakeRegistry) Name() string { return f.name }
func (f *fakeRegistry) Lookup(ctx context.Context, address, zipcode string) (anomaly.Snapshot, error) {
	if f.err != nil {
		return anomaly.Snapshot{Source: f.name}, f.err
	}
	snap := f.snap
	snap.Source = f.name
	return snap, nil
}

func workerStore(t *testing.T) (*queue.Store, *gorm.DB) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "worker_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	// single connection keeps the concurrent pipeline stages off
	// sqlite's file lock
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Unit{}, &models.Job{}, &models.ParsedUnit{}, &models.PropertyAnalysis{}))
	return queue.NewStore(db, queue.NoBackoff{}, nil), db
}

func pageExtraction(text string) *textextract.Extraction {
	return &textextract.Extraction{
		Text:      text,
		PageCount: 1,
		Pages:     []textextract.Page{{Number: 1, Text: text, TableLike: true, KeywordHits: 3}},
	}
}

func enqueue(t *testing.T, s *queue.Store, crossRef bool) *models.Job {
	t.Helper()
	job, err := s.Enqueue(context.Background(), queue.EnqueueParams{
		FileName:       "rentroll.pdf",
		FilePath:       "/tmp/rentroll.pdf",
		MaxRetries:     3,
		CrossReference: crossRef,
	})
	require.NoError(t, err)
	return job
}

func TestWorkerCompletesJob(t *testing.T) {
	s, db := workerStore(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.Unit{
		ExternalID: "A-101", Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv",
	}).Error)

	job := enqueue(t, s, false)
	pub := progress.NewPublisher()
	events, cancel := pub.Subscribe(job.ID)
	defer cancel()

	text := &fakeText{ex: pageExtraction("A-101 table text")}
	ext := &fakeExtractor{res: &extract.Result{Units: []extract.RawUnit{
		{UnitID: "A-101", Address: "Gertrude Steins Vej 4", Floor: "2", Door: "tv"},
		{UnitID: "A-999", Address: "Ukendt Vej 7"},
	}}}

	w := New(s, text, ext, nil, pub, nil, Config{PollInterval: time.Millisecond})
	claimed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1, got.Result.Stats.Matched)
	assert.Equal(t, 1, got.Result.Stats.Missing)
	require.Len(t, got.Result.MissingInDB, 1)
	assert.Equal(t, "A-999", got.Result.MissingInDB[0].ExternalID)

	var rows []models.ParsedUnit
	require.NoError(t, db.Where("job_id = ?", job.ID).Find(&rows).Error)
	assert.Len(t, rows, 2)

	// subscriber saw milestones and the terminal events, then the close
	var types []string
	var lastProgress int
	for ev := range events {
		types = append(types, ev.Type)
		if ev.Type == "progress" {
			assert.GreaterOrEqual(t, ev.Progress, lastProgress, "progress never regresses")
			lastProgress = ev.Progress
		}
	}
	assert.Equal(t, 100, lastProgress)
	assert.Contains(t, types, "results")
}

func TestWorkerCrossReferencesRegistries(t *testing.T) {
	s, db := workerStore(t)
	ctx := context.Background()

	job := enqueue(t, s, true)
	text := &fakeText{ex: pageExtraction("table")}
	ext := &fakeExtractor{res: &extract.Result{
		Units: []extract.RawUnit{{UnitID: "A-101", Address: "Hovedgaden 1", Zipcode: "2100"}},
		Property: &extract.RawProperty{
			PropertyValue: "11.500.000", BuildingYear: "1962",
		},
	}}
	regs := []anomaly.Registry{
		&fakeRegistry{name: "bbr", snap: anomaly.Snapshot{Found: true, PropertyValue: 10_000_000, BuildingYear: 1962}},
		&fakeRegistry{name: "tinglysning", snap: anomaly.Snapshot{Found: false}},
	}

	w := New(s, text, ext, regs, progress.NewPublisher(), nil, Config{})
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	require.Len(t, got.Result.Anomalies, 2)
	byType := map[string]bool{}
	for _, a := range got.Result.Anomalies {
		byType[a.Type] = true
	}
	assert.True(t, byType["value_mismatch"], "15 percent value variance flagged")
	assert.True(t, byType["missing_data"], "absent registry record flagged")

	var analyses []models.PropertyAnalysis
	require.NoError(t, db.Where("job_id = ?", job.ID).Find(&analyses).Error)
	require.Len(t, analyses, 1)
	assert.Equal(t, "Hovedgaden 1", analyses[0].Address)
	assert.Len(t, analyses[0].Anomalies, 2)
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	s, _ := workerStore(t)
	ctx := context.Background()
	job := enqueue(t, s, false)

	text := &fakeText{err: &queue.TransientError{Msg: "text service unreachable"}}
	w := New(s, text, &fakeExtractor{}, nil, progress.NewPublisher(), nil, Config{})
	claimed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status, "transient failure requeues")
	assert.Equal(t, 1, got.RetryCount)
	assert.Contains(t, got.ErrorMessage, "unreachable")
}

func TestWorkerStructuralFailureIsTerminal(t *testing.T) {
	s, _ := workerStore(t)
	ctx := context.Background()
	job := enqueue(t, s, false)

	pub := progress.NewPublisher()
	events, cancel := pub.Subscribe(job.ID)
	defer cancel()

	text := &fakeText{err: &queue.StructuralError{Msg: "document produced no text"}}
	w := New(s, text, &fakeExtractor{}, nil, pub, nil, Config{})
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, got.MaxRetries, got.RetryCount, "no retries left for an unusable document")

	sawDone := false
	for ev := range events {
		if ev.Type == "done" {
			sawDone = true
		}
	}
	assert.True(t, sawDone, "terminal failure closes the stream with a done event")
}

func TestWorkerRegistryFailureIsRetried(t *testing.T) {
	s, _ := workerStore(t)
	ctx := context.Background()
	job := enqueue(t, s, true)

	text := &fakeText{ex: pageExtraction("table")}
	ext := &fakeExtractor{res: &extract.Result{
		Units: []extract.RawUnit{{UnitID: "A-101", Address: "Hovedgaden 1"}},
	}}
	regs := []anomaly.Registry{&fakeRegistry{name: "bbr", err: &queue.TransientError{Msg: "bbr unreachable"}}}

	w := New(s, text, ext, regs, progress.NewPublisher(), nil, Config{})
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}
