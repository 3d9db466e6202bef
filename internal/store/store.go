package store

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fleet_tracker/internal/models"
)

// SchemaVersion gates structural rebuilds: when the persisted value differs
// the whole store is dropped, re-migrated and reseeded.
const SchemaVersion = 3

// SeedVersion gates content reseeds, honored in dev mode only.
const SeedVersion = 5

const (
	metaSchemaKey = "schema_version"
	metaSeedKey   = "seed_version"
)

// Options control how a Store is opened.
type Options struct {
	// Path is the SQLite file, or ":memory:" for an in-memory store.
	Path string
	// DevMode enables seed-version-gated reseeds.
	DevMode bool
}

// Store wraps the embedded database handle. All entity access in the
// application goes through it; construct one per process (or per test).
type Store struct {
	db   *gorm.DB
	opts Options

	migrateOnce sync.Once
	migrateErr  error
}

// Open connects to the embedded database and runs migration. Migration
// failure is fatal to the caller: no partial-state recovery is attempted.
func Open(opts Options) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, opts: opts}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate ensures tables exist and rebuilds + reseeds when the persisted
// schema version differs from the compiled-in one (or, in dev mode, when
// the seed version differs). Concurrent callers converge on a single run.
func (s *Store) Migrate() error {
	s.migrateOnce.Do(func() {
		s.migrateErr = s.migrate()
	})
	return s.migrateErr
}

func (s *Store) migrate() error {
	if err := s.autoMigrate(); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	schemaV, err := s.metaInt(metaSchemaKey)
	if err != nil {
		return err
	}
	seedV, err := s.metaInt(metaSeedKey)
	if err != nil {
		return err
	}

	rebuild := schemaV != SchemaVersion
	reseed := rebuild || (s.opts.DevMode && seedV != SeedVersion)
	if !reseed {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"schema_stored": schemaV,
		"schema_want":   SchemaVersion,
		"seed_stored":   seedV,
		"seed_want":     SeedVersion,
	}).Info("rebuilding store")

	if err := s.dropAll(); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := s.autoMigrate(); err != nil {
		return fmt.Errorf("re-migration failed: %w", err)
	}
	if err := s.Seed(); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	if err := s.setMeta(metaSchemaKey, strconv.Itoa(SchemaVersion)); err != nil {
		return err
	}
	return s.setMeta(metaSeedKey, strconv.Itoa(SeedVersion))
}

func (s *Store) autoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Trip{},
		&models.TripStop{},
		&models.Meta{},
	)
}

func (s *Store) dropAll() error {
	return s.db.Migrator().DropTable(
		&models.TripStop{},
		&models.Trip{},
		&models.Vehicle{},
		&models.User{},
		&models.Meta{},
	)
}

// metaInt reads a version key, 0 when absent.
func (s *Store) metaInt(key string) (int, error) {
	var m models.Meta
	err := s.db.Where("key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read meta %s: %w", key, err)
	}
	n, err := strconv.Atoi(m.Value)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *Store) setMeta(key, value string) error {
	m := models.Meta{Key: key, Value: value}
	if err := s.db.Save(&m).Error; err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}
