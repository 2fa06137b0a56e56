package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/local/marginalia/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StatusMirror is a fast read-through copy of job status used by polling.
type StatusMirror interface {
	Set(ctx context.Context, jobID uint, st Snapshot) error
	Get(ctx context.Context, jobID uint) (Snapshot, bool, error)
	Delete(ctx context.Context, jobID uint) error
}

// Snapshot is the polled view of a job.
type Snapshot struct {
	Status       models.JobStatus `json:"status"`
	Progress     int              `json:"progress"`
	ErrorMessage string           `json:"error_message"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// DB wraps the relational store.
type DB struct {
	db     *gorm.DB
	mirror StatusMirror
}

// Open connects to the database referenced by url. postgres:// and
// postgresql:// URLs use the postgres driver, everything else is sqlite.
func Open(url string) (*DB, error) {
	dialector, err := dialectorFor(url)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zerologPrinter{}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{db: gdb}, nil
}

func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case url == "":
		return nil, errors.New("empty database url")
	}
	path := strings.TrimPrefix(url, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}
	return sqlite.Open(sqliteDSN(path)), nil
}

// sqliteDSN enables WAL and a busy timeout so status polls can read while
// an upload request is writing.
func sqliteDSN(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

// WithMirror attaches a status mirror (nil disables it).
func (d *DB) WithMirror(m StatusMirror) *DB {
	d.mirror = m
	return d
}

// Migrate creates or updates the schema.
func (d *DB) Migrate() error {
	return d.db.AutoMigrate(&models.ProcessingJob{}, &models.BookAnalysis{}, &models.BookPage{}, &models.Marginalia{})
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type zerologPrinter struct{}

func (zerologPrinter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}
