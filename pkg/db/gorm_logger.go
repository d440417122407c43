package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockroom/pkg/logger"
)

// gormLogAdapter sends gorm's query log through the service logger. Only
// failed and slow statements are reported; record-not-found is expected
// control flow and stays quiet.
type gormLogAdapter struct {
	logg          *logger.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &gormLogAdapter{logg: logg, level: gormlogger.Warn, slowThreshold: slow}
}

func (a *gormLogAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *a
	clone.level = level
	return &clone
}

func (a *gormLogAdapter) Info(ctx context.Context, msg string, args ...any) {
	if a.level >= gormlogger.Info {
		a.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (a *gormLogAdapter) Warn(ctx context.Context, msg string, args ...any) {
	if a.level >= gormlogger.Warn {
		a.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (a *gormLogAdapter) Error(ctx context.Context, msg string, args ...any) {
	if a.level >= gormlogger.Error {
		a.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

func (a *gormLogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if a.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && a.level >= gormlogger.Error:
		sql, rows := fc()
		a.logg.Error(a.fields(ctx, sql, rows, elapsed), "db.query.failed", err)
	case a.slowThreshold > 0 && elapsed > a.slowThreshold && a.level >= gormlogger.Warn:
		sql, rows := fc()
		a.logg.Warn(a.fields(ctx, sql, rows, elapsed), "db.query.slow")
	}
}

func (a *gormLogAdapter) fields(ctx context.Context, sql string, rows int64, elapsed time.Duration) context.Context {
	return a.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
}
