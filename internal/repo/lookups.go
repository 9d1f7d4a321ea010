// Package repo implements the data persistence layer for gateway entities,
// backed by GORM. This file provides repository functions for the append-only
// lookup log.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Nullprotocols/telegram/internal/domain"
)

// AppendLookup writes one row to the lookup log. The result must be the raw
// serialized upstream payload, before any sanitation.
func AppendLookup(ctx context.Context, db *gorm.DB, userID int64, command, query, result string, ts time.Time) error {
	l := &domain.Lookup{
		UserID:    userID,
		Command:   command,
		Query:     query,
		Result:    result,
		Timestamp: ts,
	}
	return db.WithContext(ctx).Create(l).Error
}

// UserLookups returns a user's lookup history, most recent first.
func UserLookups(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Lookup, error) {
	var out []domain.Lookup
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc").
		Find(&out).Error
	return out, err
}

// CountLookups returns the total number of logged lookups.
func CountLookups(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Lookup{}).Count(&total).Error
	return total, err
}
