// Package repo implements the data persistence layer for gateway entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Nullprotocols/telegram/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the pipeline and bot layers.
var ErrNotFound = gorm.ErrRecordNotFound

// TouchUser records an interaction from userID at the given time. On first
// sight it inserts a fresh row with a zero lookup count; on every later call
// it bumps last_seen and increments total_lookups by one.
//
// The increment is a single UPDATE statement (total_lookups = total_lookups + 1)
// so concurrent commands from the same user never lose an update; the caller
// never holds a stored count in process memory.
func TouchUser(ctx context.Context, db *gorm.DB, userID int64, now time.Time) error {
	var existing domain.User
	err := db.WithContext(ctx).Where("id = ?", userID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u := &domain.User{ID: userID, FirstSeen: now, LastSeen: now, TotalLookups: 0}
		return db.WithContext(ctx).Create(u).Error
	}
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_seen":     now,
			"total_lookups": gorm.Expr("total_lookups + ?", 1),
		}).Error
}

// GetUser fetches a single user by ID, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user and, in the same transaction, every lookup row
// that references them. Deleting an unknown user is a no-op.
func DeleteUser(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.Lookup{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", userID).Delete(&domain.User{}).Error
	})
}

// AllUserIDs returns the IDs of every known user, used as the default
// broadcast recipient set.
func AllUserIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Pluck("id", &ids).Error
	return ids, err
}

// CountUsers returns the total number of known users.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error
	return total, err
}

// RecentUsers returns up to limit users ordered by last_seen descending.
func RecentUsers(ctx context.Context, db *gorm.DB, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Order("last_seen desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Leaderboard returns up to limit users ordered by total_lookups descending.
func Leaderboard(ctx context.Context, db *gorm.DB, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Order("total_lookups desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// InactiveUsers returns users whose last_seen is strictly before the cutoff.
func InactiveUsers(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("last_seen < ?", before).
		Order("last_seen asc").
		Find(&out).Error
	return out, err
}

// SearchUsers matches the query as a substring against the user ID. It is an
// admin convenience, not an indexed search.
func SearchUsers(ctx context.Context, db *gorm.DB, query string) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("CAST(id AS TEXT) LIKE ?", "%"+query+"%").
		Find(&out).Error
	return out, err
}
