// Package querylog persists one record per pipeline run for offline
// quality review. The store is optional; when disabled the service
// runs without it.
package querylog

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hourei-dev/hourei/internal/database"
	"github.com/hourei-dev/hourei/internal/metrics"
)

// QueryRecord is one logged pipeline run.
type QueryRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	RequestID  string `gorm:"size:64" json:"request_id,omitempty"`
	Query      string `gorm:"type:text;not null" json:"query"`
	Translated string `gorm:"type:text" json:"translated"`
	Language   string `gorm:"size:8" json:"language"`
	Route      string `gorm:"size:32;index:idx_query_log_route" json:"route"`
	Status     string `gorm:"size:16;index:idx_query_log_status" json:"status"`
	ErrorCode  string `gorm:"size:64" json:"error_code,omitempty"`

	Answer      string `gorm:"type:text" json:"answer,omitempty"`
	SourceCount int    `gorm:"default:0" json:"source_count"`
	GraphHits   int    `gorm:"default:0" json:"graph_hits"`
	VectorHits  int    `gorm:"default:0" json:"vector_hits"`
	Reranked    bool   `gorm:"default:false" json:"reranked"`
	Rewrites    int    `gorm:"default:0" json:"rewrites"`

	// ChunkIDs is the JSON array of cited chunk ids, kept as text so
	// the row stays portable across sqlite, postgres and mysql.
	ChunkIDs string `gorm:"type:text" json:"chunk_ids,omitempty"`

	DurationMS int64 `gorm:"default:0" json:"duration_ms"`

	CreatedAt time.Time `gorm:"index:idx_query_log_created" json:"created_at"`
}

// TableName fixes the table name regardless of gorm pluralization.
func (QueryRecord) TableName() string { return "query_log" }

// Store writes and reads query records.
type Store struct {
	pool      *database.PoolManager
	driver    string
	collector *metrics.Collector
	logger    *zap.Logger
}

// Open connects to the configured database, migrates the schema and
// returns a ready Store. collector may be nil.
func Open(driver, dsn string, poolCfg database.PoolConfig, collector *metrics.Collector, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported query log driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect query log database: %w", err)
	}

	return NewStore(db, driver, poolCfg, collector, logger)
}

// NewStore migrates the schema on an existing connection.
func NewStore(db *gorm.DB, driver string, poolCfg database.PoolConfig, collector *metrics.Collector, logger *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(&QueryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate query log schema: %w", err)
	}

	pool, err := database.NewPoolManager(db, poolCfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("query log store ready", zap.String("driver", driver))

	return &Store{
		pool:      pool,
		driver:    driver,
		collector: collector,
		logger:    logger.With(zap.String("component", "query_log")),
	}, nil
}

// Save persists one record. Lock contention is retried; SQLite
// reports it as "database is locked" under concurrent writers.
func (s *Store) Save(ctx context.Context, rec *QueryRecord) error {
	start := time.Now()

	err := s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})

	s.record("insert", start)

	if err != nil {
		s.logger.Warn("failed to save query record", zap.Error(err))
		return fmt.Errorf("save query record: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	start := time.Now()

	var records []QueryRecord
	err := s.pool.DB().WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error

	s.record("select", start)

	if err != nil {
		return nil, fmt.Errorf("list query records: %w", err)
	}
	return records, nil
}

// CountByStatus returns record counts grouped by final status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	start := time.Now()

	var rows []struct {
		Status string
		N      int64
	}
	err := s.pool.DB().WithContext(ctx).
		Model(&QueryRecord{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error

	s.record("select", start)

	if err != nil {
		return nil, fmt.Errorf("count query records: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// Prune deletes records older than the retention window and returns
// how many were removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	start := time.Now()

	res := s.pool.DB().WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&QueryRecord{})

	s.record("delete", start)

	if res.Error != nil {
		return 0, fmt.Errorf("prune query records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) record(op string, start time.Time) {
	if s.collector != nil {
		s.collector.RecordDBQuery(s.driver, op, time.Since(start))
	}
}
