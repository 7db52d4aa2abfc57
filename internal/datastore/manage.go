package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/gardenlab/pestnet-go/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

func createGormLogger(dbType string) *logger.GormLoggerAdapter {
	return logger.NewGormLoggerAdapter(GetLogger().With(logger.String("db_type", dbType)), slowQueryThreshold)
}

func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	start := time.Now()
	if err := db.AutoMigrate(&Detection{}); err != nil {
		return dbError("auto_migrate", err).Context("db_type", dbType).Build()
	}

	log := GetLogger()
	if debug {
		log.Debug("database migrated",
			logger.String("db_type", dbType),
			logger.String("connection", connectionInfo),
			logger.Duration("elapsed", time.Since(start)))
	}
	log.Info("detection history ready", logger.String("db_type", dbType))
	return nil
}
