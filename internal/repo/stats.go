// Package repo implements the data persistence layer for gateway entities,
// backed by GORM. This file provides the daily aggregate counters and the
// small rollup queries behind the admin stats commands.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Nullprotocols/telegram/internal/domain"
)

// DateTotal is one row of a per-date rollup.
type DateTotal struct {
	Date  string
	Total int64
}

// CommandTotal is one row of a per-command rollup.
type CommandTotal struct {
	Command string
	Total   int64
}

// IncrementDailyStat upserts the (date, command) counter, incrementing by
// one. The increment rides on the upsert as a single statement so concurrent
// lookups for the same key never lose a count.
func IncrementDailyStat(ctx context.Context, db *gorm.DB, date, command string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}, {Name: "command"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count": gorm.Expr("count + ?", 1),
			}),
		}).
		Create(&domain.DailyStat{Date: date, Command: command, Count: 1}).Error
}

// DailyTotals returns per-date lookup totals for the most recent `days`
// dates, newest first.
func DailyTotals(ctx context.Context, db *gorm.DB, days int) ([]DateTotal, error) {
	var out []DateTotal
	err := db.WithContext(ctx).
		Model(&domain.DailyStat{}).
		Select("date, SUM(count) AS total").
		Group("date").
		Order("date desc").
		Limit(days).
		Scan(&out).Error
	return out, err
}

// CommandTotals returns all-time per-command lookup totals, busiest first.
func CommandTotals(ctx context.Context, db *gorm.DB) ([]CommandTotal, error) {
	var out []CommandTotal
	err := db.WithContext(ctx).
		Model(&domain.DailyStat{}).
		Select("command, SUM(count) AS total").
		Group("command").
		Order("total desc").
		Scan(&out).Error
	return out, err
}

// TotalsForDate returns per-command totals for one calendar date, used by
// the daily digest job.
func TotalsForDate(ctx context.Context, db *gorm.DB, date string) ([]CommandTotal, error) {
	var out []CommandTotal
	err := db.WithContext(ctx).
		Model(&domain.DailyStat{}).
		Select("command, SUM(count) AS total").
		Where("date = ?", date).
		Group("command").
		Order("total desc").
		Scan(&out).Error
	return out, err
}
