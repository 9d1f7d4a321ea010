// Package domain defines the persistence models for gateway users, access
// lists, the append-only lookup log, and daily aggregate counters. These
// types are mapped with GORM and form the core data layer of the gateway.
package domain

import "time"

// User represents a chat-platform user known to the gateway. A row is
// created on the user's first command and updated on every subsequent one.
//
// TotalLookups counts lookup attempts that passed validation, not successful
// fetches: the counter is incremented before the external call is made.
type User struct {
	ID           int64     `json:"id"            gorm:"primaryKey;autoIncrement:false"`
	FirstSeen    time.Time `json:"first_seen"    gorm:"not null"`
	LastSeen     time.Time `json:"last_seen"     gorm:"not null;index"`
	TotalLookups int64     `json:"total_lookups" gorm:"not null;default:0"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Admin marks a user as an administrator. Entries are managed by the owner
// only. Admins bypass the membership gate and may run the admin command set.
type Admin struct {
	UserID    int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Admin.
func (Admin) TableName() string { return "admins" }

// Ban marks a user as banned from group usage. Entries are managed by
// admins or the owner. The admin and ban sets are disjoint in practice but
// this is not enforced; a banned admin is a documented policy gap (see
// gate.Gate).
type Ban struct {
	UserID    int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Ban.
func (Ban) TableName() string { return "banned" }

// Lookup is one entry in the append-only lookup log. The stored result is
// the raw, unsanitized upstream payload as serialized JSON. Rows are only
// removed when the owning user is deleted.
type Lookup struct {
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id"   gorm:"not null;index"`
	Command   string    `json:"command"   gorm:"type:varchar(32);not null"`
	Query     string    `json:"query"     gorm:"type:text;not null"`
	Result    string    `json:"result"    gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}

// TableName returns the database table name for Lookup.
func (Lookup) TableName() string { return "lookups" }

// DailyStat is a running per-day, per-command counter. One row exists per
// (date, command) pair; it is upserted once per successful lookup and never
// deleted. Date is the UTC calendar date in YYYY-MM-DD form.
type DailyStat struct {
	Date    string `json:"date"    gorm:"type:varchar(10);primaryKey"`
	Command string `json:"command" gorm:"type:varchar(32);primaryKey"`
	Count   int64  `json:"count"   gorm:"not null;default:0"`
}

// TableName returns the database table name for DailyStat.
func (DailyStat) TableName() string { return "daily_stats" }
