package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentroll/pkg/anomaly"
	"rentroll/pkg/extract"
	"rentroll/pkg/progress"
	"rentroll/pkg/queue"
	"rentroll/pkg/textextract"
	"rentroll/pkg/worker"
)

var (
	cfg    *Config
	logger *zap.Logger
	store  *queue.Store
	pub    *progress.Publisher
)

func main() {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.Debug {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	// Lightweight subcommands: `./rentroll migrate` runs AutoMigrate and
	// exits, `./rentroll seed <file>` loads canonical units from a JSON
	// fixture. Useful for CI or manual DB setup.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			initDB(cfg)
			fmt.Println("migration completed")
			return
		case "seed":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "usage: rentroll seed <units.json>")
				os.Exit(1)
			}
			initDB(cfg)
			if err := seedUnits(os.Args[2]); err != nil {
				logger.Fatal("seed failed", zap.Error(err))
			}
			return
		}
	}

	initDB(cfg)

	backoff := queue.ExponentialBackoff{Base: 2 * time.Second, Max: 60 * time.Second}
	store = queue.NewStore(db, backoff, logger)
	pub = progress.NewPublisher()

	ctx := context.Background()
	if n, err := store.RecoverStale(ctx, cfg.LeaseTimeout); err != nil {
		logger.Warn("stale recovery failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("requeued stale jobs", zap.Int64("count", n))
	}

	startWorkers(ctx)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	setupRoutes(r)
	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// startWorkers launches the in-process worker pool. Additional worker
// processes can run alongside via process/cmd_worker; the store's claim
// keeps them from stepping on each other.
func startWorkers(ctx context.Context) {
	if cfg.Workers <= 0 {
		logger.Info("no embedded workers configured")
		return
	}
	text := textextract.NewClient(cfg.TextServiceURL, cfg.CallTimeout, logger)
	extractor, err := extract.NewClient(cfg.ExtractorBaseURL, cfg.ExtractorAPIKey, cfg.ExtractorModel, cfg.CallTimeout, logger)
	if err != nil {
		logger.Fatal("extraction client", zap.Error(err))
	}
	var registries []anomaly.Registry
	for name, base := range cfg.Registries {
		registries = append(registries, anomaly.NewHTTPRegistry(name, base, cfg.CallTimeout, logger))
	}
	wcfg := worker.Config{
		PollInterval: cfg.PollInterval,
		CallTimeout:  cfg.CallTimeout,
		CharBudget:   cfg.CharBudget,
	}
	for i := 0; i < cfg.Workers; i++ {
		w := worker.New(store, text, extractor, registries, pub, logger.With(zap.Int("worker", i)), wcfg)
		go w.Run(ctx)
	}
	logger.Info("workers started", zap.Int("count", cfg.Workers))
}
