// Standalone worker process. Runs the same processing loop as the
// embedded server workers against the shared job table, so capacity can
// be scaled independently of the API. Claims are conditional updates;
// any number of these can run next to the server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentroll/pkg/anomaly"
	"rentroll/pkg/extract"
	"rentroll/pkg/progress"
	"rentroll/pkg/queue"
	"rentroll/pkg/textextract"
	"rentroll/pkg/worker"
)

func main() {
	workers := flag.Int("workers", 2, "number of worker goroutines")
	poll := flag.Duration("poll", 2*time.Second, "queue poll interval")
	timeout := flag.Duration("timeout", 90*time.Second, "per-call timeout for external services")
	flag.Parse()

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
	text := textextract.NewClient(os.Getenv("RR_TEXT_SERVICE_URL"), *timeout, logger)
	extractor, err := extract.NewClient(
		os.Getenv("RR_EXTRACTOR_URL"),
		os.Getenv("RR_EXTRACTOR_API_KEY"),
		envOr("RR_EXTRACTOR_MODEL", "gpt-4o-mini"),
		*timeout, logger)
	if err != nil {
		log.Fatalf("extraction client: %v", err)
	}

	var registries []anomaly.Registry
	for _, part := range strings.Split(os.Getenv("RR_REGISTRIES"), ";") {
		if eq := strings.IndexByte(part, '='); eq > 0 {
			registries = append(registries, anomaly.NewHTTPRegistry(
				strings.TrimSpace(part[:eq]), strings.TrimSpace(part[eq+1:]), *timeout, logger))
		}
	}

	pub := progress.NewPublisher()
	wcfg := worker.Config{PollInterval: *poll, CallTimeout: *timeout}

	ctx := context.Background()
	if n, err := store.RecoverStale(ctx, 15*time.Minute); err != nil {
		logger.Warn("stale recovery failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("requeued stale jobs", zap.Int64("count", n))
	}

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		w := worker.New(store, text, extractor, registries, pub, logger.With(zap.Int("worker", i)), wcfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	logger.Info("worker process started", zap.Int("workers", *workers))
	wg.Wait()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
