// Package store keeps the history of searches in PostgreSQL.
package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/internal/search"
)

// Store records searches. It implements search.Recorder.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&SearchRun{}, &SearchListing{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Record stores a finished search with its listings in one transaction.
func (s *Store) Record(ctx context.Context, _ search.Query, r search.Result) error {
	run := runFromResult(r)
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("failed to insert search run: %w", err)
	}
	logger.Debug("search recorded", "run", run.ID, "listings", len(run.Listings))
	return nil
}

// Recent returns the latest searches, newest first. A non-empty location
// filters case-insensitively.
func (s *Store) Recent(ctx context.Context, location string, limit int) ([]search.Result, error) {
	if limit <= 0 {
		limit = 20
	}

	q := s.db.WithContext(ctx).
		Preload("Listings", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_index")
		}).
		Order("started_at DESC").
		Limit(limit)
	if location != "" {
		q = q.Where("location ILIKE ?", "%"+location+"%")
	}

	var runs []SearchRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to query search runs: %w", err)
	}

	results := make([]search.Result, 0, len(runs))
	for _, run := range runs {
		results = append(results, run.Result())
	}
	return results, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
