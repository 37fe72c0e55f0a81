// Package database opens the primary and read-only postgres handles and registers
// the query hooks that feed the metrics collector.
package database

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AnnixInvestments/annix-sub017/config"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

// Handles bundles the write and read-only connections
type Handles struct {
	DB         *gorm.DB
	ReadOnlyDB *gorm.DB
}

// Connect establishes both database connections. When the read-only DSN matches
// the primary one the same handle is returned twice.
func Connect(cfg config.DatabaseConfig, m *metrics.Metrics, debug bool) (*Handles, error) {
	db, err := open(cfg.DSN, cfg, m, debug)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if cfg.ReadOnlyDSN == "" || cfg.ReadOnlyDSN == cfg.DSN {
		return &Handles{DB: db, ReadOnlyDB: db}, nil
	}

	readOnly, err := open(cfg.ReadOnlyDSN, cfg, m, debug)
	if err != nil {
		_ = Close(&Handles{DB: db})
		return nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	return &Handles{DB: db, ReadOnlyDB: readOnly}, nil
}

func open(dsn string, cfg config.DatabaseConfig, m *metrics.Metrics, debug bool) (*gorm.DB, error) {
	logLevel := logger.Error
	if debug {
		logLevel = logger.Info
	}

	gormLogger := logger.New(
		&logAdapter{},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get database connection")
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := RegisterDurationHooks(db); err != nil {
		return nil, err
	}
	if err := RegisterMetricsHooks(db, m); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations against the primary handle
func Migrate(h *Handles) error {
	if err := models.SetupModels(h.DB); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}
	log.Info().Msg("Database migrations applied")
	return nil
}

// Ping checks both connections
func Ping(h *Handles) error {
	for _, db := range []*gorm.DB{h.DB, h.ReadOnlyDB} {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return errors.Wrap(err, "database ping failed")
		}
	}
	return nil
}

// Close releases both connection pools
func Close(h *Handles) error {
	var firstErr error
	for i, db := range []*gorm.DB{h.DB, h.ReadOnlyDB} {
		if db == nil || (i == 1 && db == h.DB) {
			continue
		}
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// logAdapter routes gorm's logger output through zerolog
type logAdapter struct{}

func (l *logAdapter) Printf(format string, args ...interface{}) {
	log.Debug().Str("component", "gorm").Msg(fmt.Sprintf(format, args...))
}
