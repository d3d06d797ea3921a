// Drop-folder ingestor. Watches a directory and enqueues a job for
// every PDF that lands in it, so documents can be fed in bulk without
// going through the upload endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentroll/pkg/queue"
)

func main() {
	dir := flag.String("dir", "", "directory to watch for incoming PDFs")
	assetID := flag.Uint("asset", 0, "asset id to scope matching to (0 = unscoped)")
	crossRef := flag.Bool("cross-reference", false, "run registry cross-referencing for each job")
	settle := flag.Duration("settle", 2*time.Second, "wait after last write before enqueueing")
	flag.Parse()
	if *dir == "" {
		log.Fatal("-dir required")
	}

	dsn := os.Getenv("RR_DSN")
	if dsn == "" {
		log.Fatal("RR_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	store := queue.NewStore(db, nil, logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("watcher: %v", err)
	}
	defer watcher.Close()
	if err := watcher.Add(*dir); err != nil {
		log.Fatalf("watch %s: %v", *dir, err)
	}
	logger.Info("watching drop folder", zap.String("dir", *dir))

	// pending tracks files seen but not yet settled; a file is enqueued
	// once no write has touched it for the settle window.
	pending := map[string]time.Time{}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".pdf") {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < *settle {
					continue
				}
				delete(pending, path)
				enqueue(ctx, store, logger, path, *assetID, *crossRef)
			}
		}
	}
}

func enqueue(ctx context.Context, store *queue.Store, logger *zap.Logger, path string, assetID uint, crossRef bool) {
	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("dropped file vanished", zap.String("path", path), zap.Error(err))
		return
	}
	p := queue.EnqueueParams{
		FileName:       filepath.Base(path),
		FilePath:       path,
		FileSizeBytes:  info.Size(),
		CrossReference: crossRef,
	}
	if assetID > 0 {
		id := assetID
		p.AssetID = &id
	}
	job, err := store.Enqueue(ctx, p)
	if err != nil {
		logger.Error("enqueue failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("enqueued dropped file", zap.Uint("job_id", job.ID), zap.String("file", p.FileName))
}
