package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/planconv/planconv/domains/conversion"
)

// --- Persistence Model ---

type cacheEntryModel struct {
	Fingerprint     string         `gorm:"primaryKey;column:fingerprint;size:64"`
	SourceTimestamp time.Time      `gorm:"column:source_timestamp;not null"`
	ReservedAt      time.Time      `gorm:"column:reserved_at;not null"`
	CompletedAt     *time.Time     `gorm:"column:completed_at"`
	Result          sql.NullString `gorm:"column:result;type:json;check:chk_conversion_result_pairing,(completed_at IS NULL) = (result IS NULL)"`
}

func (cacheEntryModel) TableName() string { return "conversion_cache" }

func toDomainEntry(m cacheEntryModel) *conversion.CacheEntry {
	entry := &conversion.CacheEntry{
		Fingerprint:     m.Fingerprint,
		SourceTimestamp: m.SourceTimestamp,
		ReservedAt:      m.ReservedAt,
		CompletedAt:     m.CompletedAt,
	}
	if m.Result.Valid {
		entry.Result = json.RawMessage(m.Result.String)
	}
	return entry
}

// --- Repository Implementation ---

// CacheGormRepository persists conversion cache entries. The fingerprint
// primary key is the sole arbiter of reservation exclusivity, so the
// guarantees hold across independent processes sharing one database.
type CacheGormRepository struct {
	db *gorm.DB
}

func NewCacheGormRepository(db *gorm.DB) *CacheGormRepository {
	return &CacheGormRepository{db: db}
}

func (r *CacheGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&cacheEntryModel{})
}

func (r *CacheGormRepository) Lookup(ctx context.Context, fp string) (*conversion.CacheEntry, error) {
	var m cacheEntryModel
	if err := r.db.WithContext(ctx).First(&m, "fingerprint = ?", fp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainEntry(m), nil
}

// Reserve claims a fingerprint with a plain insert. Concurrent callers
// racing on the same fingerprint hit the primary-key constraint, so exactly
// one insert succeeds; the losers resolve what they lost to via Lookup.
func (r *CacheGormRepository) Reserve(ctx context.Context, fp string, sourceTimestamp time.Time) (conversion.ReserveOutcome, error) {
	m := cacheEntryModel{
		Fingerprint:     fp,
		SourceTimestamp: sourceTimestamp.UTC(),
		ReservedAt:      time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Create(&m).Error
	if err == nil {
		return conversion.ReserveAcquired, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return conversion.ReserveAlreadyReserved, err
	}

	entry, lookupErr := r.Lookup(ctx, fp)
	if lookupErr != nil {
		return conversion.ReserveAlreadyReserved, lookupErr
	}
	if entry != nil && entry.Completed() {
		return conversion.ReserveAlreadyCompleted, nil
	}
	return conversion.ReserveAlreadyReserved, nil
}

// Complete transitions a reserved row to completed. The completed_at guard
// makes the transition single-shot: a second completion for the same
// fingerprint matches zero rows and reports ErrNotReserved.
func (r *CacheGormRepository) Complete(ctx context.Context, fp string, result json.RawMessage) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&cacheEntryModel{}).
		Where("fingerprint = ? AND completed_at IS NULL", fp).
		Updates(map[string]any{
			"completed_at": &now,
			"result":       sql.NullString{String: string(result), Valid: true},
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conversion.ErrNotReserved
	}
	return nil
}

// ReclaimStale takes over a reservation whose clock predates olderThan.
// The reserved_at guard in the update makes concurrent reclaimers race the
// same way reservers do: one row update wins, the rest see zero rows.
func (r *CacheGormRepository) ReclaimStale(ctx context.Context, fp string, olderThan time.Time) (conversion.ReclaimOutcome, error) {
	res := r.db.WithContext(ctx).
		Model(&cacheEntryModel{}).
		Where("fingerprint = ? AND completed_at IS NULL AND reserved_at < ?", fp, olderThan.UTC()).
		Update("reserved_at", time.Now().UTC())
	if res.Error != nil {
		return conversion.ReclaimNotFound, res.Error
	}
	if res.RowsAffected > 0 {
		return conversion.ReclaimAcquired, nil
	}

	entry, err := r.Lookup(ctx, fp)
	if err != nil {
		return conversion.ReclaimNotFound, err
	}
	if entry == nil || entry.Completed() {
		return conversion.ReclaimNotFound, nil
	}
	return conversion.ReclaimNotStale, nil
}

func (r *CacheGormRepository) Stats(ctx context.Context) (conversion.CacheStats, error) {
	var stats conversion.CacheStats

	db := r.db.WithContext(ctx).Model(&cacheEntryModel{})
	if err := db.Count(&stats.TotalEntries).Error; err != nil {
		return stats, err
	}
	if err := r.db.WithContext(ctx).Model(&cacheEntryModel{}).
		Where("completed_at IS NOT NULL").Count(&stats.Completed).Error; err != nil {
		return stats, err
	}
	stats.Reserved = stats.TotalEntries - stats.Completed

	// LENGTH has no overload for json columns on postgres; the text cast
	// makes the sum work on both dialects (sqlite stores json as TEXT and
	// treats the cast as a no-op).
	row := r.db.WithContext(ctx).Model(&cacheEntryModel{}).
		Select("COALESCE(SUM(LENGTH(CAST(result AS TEXT))), 0)").Row()
	if err := row.Scan(&stats.ResultBytes); err != nil {
		return stats, err
	}
	return stats, nil
}
