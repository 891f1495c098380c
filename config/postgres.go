package config

import (
	"errors"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hirelens/hirelens/internal/models"
)

var PostgresDB *gorm.DB

func InitPostgres() error {
	uri := os.Getenv("POSTGRES_URI")
	if uri == "" {
		return errors.New("POSTGRES_URI environment variable is not set")
	}
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// Connection Pooling settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Vector columns need the pgvector extension before AutoMigrate runs.
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&models.ScreeningResult{},
		&models.Embedding{},
		&models.EmbeddingChunk{},
		&models.Skill{},
		&models.SkillAlias{},
		&models.JobApplication{},
		&models.JobPosting{},
	); err != nil {
		return err
	}

	// At most one non-failed screening per application. Concurrent triggers
	// race to this index rather than to the service-level pre-check.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_screenings_one_active
		ON screening_results (application_id) WHERE status <> 'failed'`).Error; err != nil {
		return err
	}

	PostgresDB = db
	return nil
}
