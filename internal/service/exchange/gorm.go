package exchange

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/renkeyss/cch-bot/internal/model/exchange"
)

// GormRecorder stores exchanges in a SQLite database.
type GormRecorder struct {
	db *gorm.DB
}

// OpenGormRecorder opens the SQLite database at dsn and migrates the exchange table.
func OpenGormRecorder(dsn string) (*GormRecorder, error) {
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open exchange db: %w", err)
	}

	if err := db.AutoMigrate(&exchange.Exchange{}); err != nil {
		return nil, fmt.Errorf("migrate exchange db: %w", err)
	}

	return &GormRecorder{db: db}, nil
}

func (r *GormRecorder) Record(ctx context.Context, entry exchange.Exchange) error {
	if entry.UserID == "" {
		return ErrUserRequired
	}
	entry = stamp(entry)

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	return nil
}

func (r *GormRecorder) Recent(ctx context.Context, userID string, limit int) ([]exchange.Exchange, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}

	var entries []exchange.Exchange
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (r *GormRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDirForSQLite creates the parent directory of a file-backed DSN.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
