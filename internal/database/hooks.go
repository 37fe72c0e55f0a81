package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
)

const startTimeKey = "start_time"

// RegisterDurationHooks stamps the start time before every create, query, update and delete
func RegisterDurationHooks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []error{
		cb.Create().Before("gorm:create").Register("duration:create", LogDuration),
		cb.Query().Before("gorm:query").Register("duration:query", LogDuration),
		cb.Update().Before("gorm:update").Register("duration:update", LogDuration),
		cb.Delete().Before("gorm:delete").Register("duration:delete", LogDuration),
		cb.Raw().Before("gorm:raw").Register("duration:raw", LogDuration),
	}
	for _, err := range hooks {
		if err != nil {
			return errors.Wrap(err, "failed to register duration hook")
		}
	}
	return nil
}

// RegisterMetricsHooks records query counts, outcomes and durations after each operation
func RegisterMetricsHooks(db *gorm.DB, m *metrics.Metrics) error {
	cb := db.Callback()
	hooks := []error{
		cb.Create().After("gorm:create").Register("metrics:create", recordQuery(m, "insert")),
		cb.Query().After("gorm:query").Register("metrics:query", recordQuery(m, "select")),
		cb.Update().After("gorm:update").Register("metrics:update", recordQuery(m, "update")),
		cb.Delete().After("gorm:delete").Register("metrics:delete", recordQuery(m, "delete")),
		cb.Raw().After("gorm:raw").Register("metrics:raw", recordQuery(m, "raw")),
	}
	for _, err := range hooks {
		if err != nil {
			return errors.Wrap(err, "failed to register metrics hook")
		}
	}
	return nil
}

// LogDuration sets the start time of the database operation
func LogDuration(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func recordQuery(m *metrics.Metrics, queryType string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if m == nil {
			return
		}
		m.IncrementCounter(metrics.DatabaseQueries + "_" + queryType)
		m.RecordOutcome(metrics.DatabaseQueries, queryError(db))
		m.RecordTimer(metrics.DatabaseQueryDuration, getDuration(db))
	}
}

// queryError ignores not-found lookups so they do not count as failures
func queryError(db *gorm.DB) error {
	if db.Error == nil || errors.Is(db.Error, gorm.ErrRecordNotFound) {
		return nil
	}
	return db.Error
}

func getDuration(db *gorm.DB) time.Duration {
	if start, ok := db.InstanceGet(startTimeKey); ok {
		if t, ok := start.(time.Time); ok {
			return time.Since(t)
		}
	}
	return 0
}
