package main

import (
	"os"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentroll/models"
)

var db *gorm.DB

func initDB(cfg *Config) {
	if cfg.DSN == "" {
		logger.Fatal("RR_DSN is not set; a Postgres DSN is required")
	}
	var err error
	db, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal("failed to connect postgres database", zap.Error(err))
	}
	migrate(db)
	ensureUploadBase(cfg)
}

// migrate runs AutoMigrate per model so a failure on one does not block
// the others.
func migrate(db *gorm.DB) {
	if err := db.AutoMigrate(&models.Unit{}); err != nil {
		logger.Warn("migration warning (units)", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Job{}); err != nil {
		logger.Warn("migration warning (jobs)", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.ParsedUnit{}); err != nil {
		logger.Warn("migration warning (parsed_units)", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.PropertyAnalysis{}); err != nil {
		logger.Warn("migration warning (property_analyses)", zap.Error(err))
	}
	// composite index backing the claim query
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_jobs_claimable ON jobs(status, next_attempt_at)`).Error; err != nil {
		logger.Warn("claim index warning", zap.Error(err))
	}
}

// ensureUploadBase creates the base uploads directory.
func ensureUploadBase(cfg *Config) {
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		logger.Warn("failed to create upload base dir", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}
}
