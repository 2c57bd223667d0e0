package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the directory of servers, users, grants, credentials and invites.
// Every method runs as its own short transaction; nothing holds a transaction
// across a gateway call.
type Store struct {
	db *gorm.DB
}

// New wraps an already opened gorm handle.
func New(database *gorm.DB) *Store {
	return &Store{db: database}
}

// DB exposes the underlying handle for tests and migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InitDB opens the SQLite database referenced by databaseURL and runs migrations.
func InitDB(databaseURL string) (*Store, error) {
	dsn, err := sqliteDSN(databaseURL)
	if err != nil {
		return nil, err
	}
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(database); err != nil {
		return nil, err
	}
	log.WithField("dsn", dsn).Info("directory store ready")
	return New(database), nil
}

// gormLogger routes gorm warnings through logrus. Lookups that miss are
// expected and surface as ErrNotFound instead.
func gormLogger() logger.Interface {
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or updates every directory table.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Server{},
		&models.User{},
		&models.AccessGrant{},
		&models.ServerCredential{},
		&models.Invite{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// sqliteDSN accepts "sqlite://path", "sqlite:path", SQLAlchemy style
// "sqlite+aiosqlite:///path" or a bare path.
func sqliteDSN(databaseURL string) (string, error) {
	u := strings.TrimSpace(databaseURL)
	if u == "" {
		return "", fmt.Errorf("empty database url")
	}
	scheme, rest, found := strings.Cut(u, ":")
	if !found || strings.HasPrefix(rest, "memory:") || scheme == "file" {
		return u, nil
	}
	if !strings.HasPrefix(scheme, "sqlite") {
		return "", fmt.Errorf("unsupported database scheme %q", scheme)
	}
	switch {
	case strings.HasPrefix(rest, "///"):
		rest = strings.TrimPrefix(rest, "///")
	case strings.HasPrefix(rest, "//"):
		rest = strings.TrimPrefix(rest, "//")
	}
	if rest == "" {
		return "", fmt.Errorf("database url %q has no path", databaseURL)
	}
	return rest, nil
}
