package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SQLiteStore is the durable ledger, backed by an embedded SQLite
// database so records survive process restarts without any external
// service. The UNIQUE(fingerprint, platform) index makes MarkDrafted a
// compare-and-set.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the ledger database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Find(ctx context.Context, fingerprint, platformName string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("fingerprint = ? AND platform = ?", fingerprint, platformName).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) MarkDrafted(ctx context.Context, fingerprint, platformName, externalID string) (*Record, error) {
	rec := &Record{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Platform:    platformName,
		Status:      StatusDrafted,
		ExternalID:  externalID,
	}
	err := s.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return rec, nil
	}
	if !isUniqueViolation(err) {
		return nil, err
	}

	// A row exists. Upgrade it only if it is not already DRAFTED; the
	// WHERE clause keeps this a compare-and-set under concurrency.
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("fingerprint = ? AND platform = ? AND status <> ?", fingerprint, platformName, StatusDrafted).
		Updates(map[string]interface{}{"status": StatusDrafted, "external_id": externalID})
	if res.Error != nil {
		return nil, res.Error
	}
	existing, ferr := s.Find(ctx, fingerprint, platformName)
	if ferr != nil {
		return nil, ferr
	}
	if res.RowsAffected == 0 {
		return existing, ErrDuplicate
	}
	return existing, nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, fingerprint, platformName string) (*Record, error) {
	rec := &Record{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Platform:    platformName,
		Status:      StatusFailed,
	}
	err := s.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return rec, nil
	}
	if !isUniqueViolation(err) {
		return nil, err
	}
	// Never downgrade DRAFTED; a FAILED row just gets its timestamp bumped.
	s.db.WithContext(ctx).Model(&Record{}).
		Where("fingerprint = ? AND platform = ? AND status = ?", fingerprint, platformName, StatusFailed).
		Update("updated_at", time.Now())
	return s.Find(ctx, fingerprint, platformName)
}

func (s *SQLiteStore) ByPlatform(ctx context.Context, platformName string) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("platform = ?", platformName).
		Order("updated_at DESC").
		Find(&recs).Error
	return recs, err
}

// glebarez/sqlite often reports UNIQUE violations as plain-text errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
