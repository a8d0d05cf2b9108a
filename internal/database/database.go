package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"estatemerge/internal/models"
)

// ErrNoCatalog is returned when no integration run has been stored yet.
var ErrNoCatalog = errors.New("no catalog stored")

// listingBatchSize bounds the rows per INSERT when saving listings.
const listingBatchSize = 200

// Store persists integration runs.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// Open connects to a sqlite file or a postgres DSN and runs migrations.
func Open(driver, dsn string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// One connection keeps in-memory databases shared and serialises writers
		sqlDB.SetMaxOpenConns(1)

		// Enable foreign keys
		if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		dialector = sqlite.New(sqlite.Config{Conn: sqlDB})
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	store := NewStore(db, logger)
	if err := store.RunMigrations(); err != nil {
		store.Close()
		return nil, err
	}

	logger.WithField("driver", driver).Info("Database ready")
	return store, nil
}

// NewStore wraps an existing connection. Migrations are not run.
func NewStore(db *gorm.DB, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Store{db: db, logger: logger}
}

// NewTestDB opens a migrated in-memory sqlite store.
func NewTestDB() (*Store, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return Open("sqlite", ":memory:", logger)
}

// DB exposes the underlying connection for transactions.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveCatalog stores a catalog and its listings in one transaction.
func (s *Store) SaveCatalog(ctx context.Context, catalog *models.Catalog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return SaveCatalog(tx, catalog)
	})
}

// SaveCatalog writes a catalog using tx. Saving the same run twice fails on
// the primary key.
func SaveCatalog(tx *gorm.DB, catalog *models.Catalog) error {
	header := *catalog
	header.Properties = nil
	document, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode catalog %s: %w", catalog.RunID, err)
	}

	run := CatalogRun{
		ID:                 catalog.RunID,
		Area:               catalog.Area,
		IntegrationTime:    catalog.IntegrationTime,
		TotalProperties:    catalog.TotalProperties,
		Truncated:          catalog.Truncated,
		UnprocessedRecords: catalog.UnprocessedRecords,
		Catalog:            datatypes.JSON(document),
	}
	if err := tx.Omit("Listings").Create(&run).Error; err != nil {
		return fmt.Errorf("failed to insert catalog run %s: %w", catalog.RunID, err)
	}

	if len(catalog.Properties) == 0 {
		return nil
	}

	records := make([]ListingRecord, len(catalog.Properties))
	for i, listing := range catalog.Properties {
		data, err := json.Marshal(listing)
		if err != nil {
			return fmt.Errorf("failed to encode listing %s: %w", listing.ID, err)
		}
		records[i] = ListingRecord{
			RunID:        catalog.RunID,
			Position:     i,
			ListingID:    listing.ID,
			Platform:     string(listing.Platform),
			PropertyType: string(listing.PropertyType),
			TradeType:    string(listing.TradeType),
			Price:        listing.Price,
			Area:         listing.Area,
			Latitude:     listing.Latitude,
			Longitude:    listing.Longitude,
			Synthetic:    listing.Synthetic,
			Data:         datatypes.JSON(data),
		}
	}

	if err := tx.CreateInBatches(records, listingBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert listings of run %s: %w", catalog.RunID, err)
	}
	return nil
}

// LatestCatalog returns the most recent stored catalog.
func (s *Store) LatestCatalog(ctx context.Context) (*models.Catalog, error) {
	var run CatalogRun
	err := s.db.WithContext(ctx).Order("integration_time DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoCatalog
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest catalog: %w", err)
	}
	return s.loadCatalog(ctx, &run)
}

// Catalog returns the catalog of one run.
func (s *Store) Catalog(ctx context.Context, runID string) (*models.Catalog, error) {
	var run CatalogRun
	err := s.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoCatalog
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog %s: %w", runID, err)
	}
	return s.loadCatalog(ctx, &run)
}

func (s *Store) loadCatalog(ctx context.Context, run *CatalogRun) (*models.Catalog, error) {
	var catalog models.Catalog
	if err := json.Unmarshal(run.Catalog, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog %s: %w", run.ID, err)
	}

	var records []ListingRecord
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", run.ID).
		Order("position ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query listings of run %s: %w", run.ID, err)
	}

	catalog.Properties = make([]models.Listing, len(records))
	for i, record := range records {
		if err := json.Unmarshal(record.Data, &catalog.Properties[i]); err != nil {
			return nil, fmt.Errorf("failed to decode listing %s: %w", record.ListingID, err)
		}
	}

	return &catalog, nil
}

// ListRuns returns summaries of stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []CatalogRun
	if err := s.db.WithContext(ctx).
		Select("id", "area", "integration_time", "total_properties", "truncated").
		Order("integration_time DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list catalog runs: %w", err)
	}

	summaries := make([]models.RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = models.RunSummary{
			RunID:           run.ID,
			Area:            run.Area,
			IntegrationTime: run.IntegrationTime,
			TotalProperties: run.TotalProperties,
			Truncated:       run.Truncated,
		}
	}
	return summaries, nil
}

// PruneRuns removes all but the newest keep runs and reports how
// many were removed.
func (s *Store) PruneRuns(ctx context.Context, keep int) (int64, error) {
	var stale []string
	if err := s.db.WithContext(ctx).
		Model(&CatalogRun{}).
		Order("integration_time DESC").
		Offset(keep).
		Pluck("id", &stale).Error; err != nil {
		return 0, fmt.Errorf("failed to find stale runs: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id IN ?", stale).Delete(&ListingRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", stale).Delete(&CatalogRun{})
		removed = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	s.logger.WithField("removed", removed).Info("Pruned old catalog runs")
	return removed, nil
}
