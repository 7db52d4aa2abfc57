package datastore

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/logger"
)

// MySQLStore keeps the history in a MySQL database.
type MySQLStore struct {
	DataStore
	DSN   string
	Debug bool
}

// Open validates the DSN, forces time parsing and migrates the schema.
func (store *MySQLStore) Open() error {
	cfg, err := gomysql.ParseDSN(store.DSN)
	if err != nil {
		return errors.New(fmt.Errorf("invalid mysql dsn: %w", err)).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}

	// Never log the password.
	target := fmt.Sprintf("%s/%s", cfg.Addr, cfg.DBName)
	mysqlLogger := GetLogger().With(logger.String("target", target))

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), &gorm.Config{Logger: createGormLogger("mysql")})
	if err != nil {
		mysqlLogger.Error("failed to open mysql database", logger.Error(err))
		return dbError("open", err).Context("target", target).Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError("open", err).Build()
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store.DB = db
	return performAutoMigration(db, store.Debug, "mysql", target)
}
