// Package repo implements the data persistence layer for gateway entities,
// backed by GORM. This file provides repository functions for the admin and
// ban lists consulted by the access gate.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Nullprotocols/telegram/internal/domain"
)

// IsAdmin reports whether userID is a registered administrator.
func IsAdmin(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Admin{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n > 0, err
}

// AddAdmin registers userID as an administrator. Adding an existing admin is
// a no-op, which makes owner seeding at startup idempotent.
func AddAdmin(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Admin{UserID: userID}).Error
}

// RemoveAdmin revokes admin rights from userID. Removing an unknown admin is
// a no-op.
func RemoveAdmin(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Admin{}).Error
}

// ListAdmins returns the IDs of all registered administrators.
func ListAdmins(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.Admin{}).
		Pluck("user_id", &ids).Error
	return ids, err
}

// IsBanned reports whether userID is on the ban list.
func IsBanned(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Ban{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n > 0, err
}

// BanUser adds userID to the ban list. Banning twice is a no-op.
func BanUser(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Ban{UserID: userID}).Error
}

// UnbanUser removes userID from the ban list. Unbanning an unknown user is a
// no-op.
func UnbanUser(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Ban{}).Error
}
