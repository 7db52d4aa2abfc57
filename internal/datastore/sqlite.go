package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

// SQLiteStore keeps the history in a local SQLite file.
type SQLiteStore struct {
	DataStore
	Path  string
	Debug bool
}

// Open creates the database file if needed and migrates the schema.
func (store *SQLiteStore) Open() error {
	if store.Path == "" {
		return errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if dir := filepath.Dir(store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dbError("open", err).Context("path", store.Path).Build()
		}
	}

	dsn := store.Path + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: createGormLogger("sqlite")})
	if err != nil {
		return dbError("open", err).Context("path", store.Path).Build()
	}

	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY between them.
	sqlDB, err := db.DB()
	if err != nil {
		return dbError("open", err).Build()
	}
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	return performAutoMigration(db, store.Debug, "sqlite", store.Path)
}
