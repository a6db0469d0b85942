package database

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"social-trading-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
		// Duplicate unique keys must surface as gorm.ErrDuplicatedKey so the
		// services can map them to a conflict outcome.
		TranslateError: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logrus.Info("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	// Migrate core ledger models first
	coreModels := []interface{}{
		&models.User{},
		&models.PointTransaction{},
		&models.Achievement{},
		&models.UserAchievement{},
	}

	for _, model := range coreModels {
		if err := DB.AutoMigrate(model); err != nil {
			logrus.WithError(err).Warnf("migration issue for %T", model)
		}
	}

	// Migrate social-graph mirror models
	socialModels := []interface{}{
		&models.Follow{},
		&models.Comment{},
		&models.Like{},
	}

	for _, model := range socialModels {
		if err := DB.AutoMigrate(model); err != nil {
			logrus.WithError(err).Warnf("migration issue for %T", model)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
