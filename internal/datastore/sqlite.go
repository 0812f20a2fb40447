package datastore

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/casetrail/casetrail/internal/conf"
	"github.com/casetrail/casetrail/internal/errors"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
// Foreign key enforcement is off by default in SQLite, so it is switched on
// in the DSN; the cascade and SET NULL rules depend on it.
func (store *SQLiteStore) Open() error {
	dsn := store.Settings.Database.SQLite.Path + "?_foreign_keys=on"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryStoreUnavailable).
			Context("operation", "open").
			Context("db_type", "sqlite").
			Build()
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", store.Settings.Database.SQLite.Path)
}

// Close releases the underlying connection pool.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return dbError(err, "close", "database", "")
	}
	return sqlDB.Close()
}
