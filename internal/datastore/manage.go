package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/casetrail/casetrail/internal/errors"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow and logged at warn level.
const DefaultSlowQueryThreshold = 1 * time.Second

// allModels lists every entity the schema carries, in migration order:
// investigations first so the child tables can declare their foreign keys.
func allModels() []any {
	return []any{
		&Investigation{},
		&Task{},
		&EvidenceItem{},
		&Activity{},
		&Collaborator{},
		&Presence{},
	}
}

// performAutoMigration creates or upgrades the schema for the six engine
// relations, including foreign keys, cascade rules and secondary indexes.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}
	if debug {
		getLogger().Debug("schema migration completed", "db_type", dbType, "connection", connectionInfo)
	}
	return nil
}

// createGormLogger bridges GORM's logger onto the package slog logger.
func createGormLogger() gormlogger.Interface {
	return &slogGormLogger{slowThreshold: DefaultSlowQueryThreshold}
}

type slogGormLogger struct {
	slowThreshold time.Duration
}

func (l *slogGormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *slogGormLogger) Info(_ context.Context, msg string, data ...any) {
	getLogger().Info(fmt.Sprintf(msg, data...))
}

func (l *slogGormLogger) Warn(_ context.Context, msg string, data ...any) {
	getLogger().Warn(fmt.Sprintf(msg, data...))
}

func (l *slogGormLogger) Error(_ context.Context, msg string, data ...any) {
	getLogger().Error(fmt.Sprintf(msg, data...))
}

func (l *slogGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		getLogger().Error("query failed", "error", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case elapsed > l.slowThreshold:
		sql, rows := fc()
		getLogger().Warn("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
