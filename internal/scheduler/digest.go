// Package scheduler runs the recurring background jobs of the gateway. Its
// only job today is the daily digest: a per-command rollup of the previous
// day's lookups posted to the stats channel.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Nullprotocols/telegram/internal/platform"
	"github.com/Nullprotocols/telegram/internal/repo"
)

// Digest posts yesterday's lookup totals to a stats channel.
type Digest struct {
	DB      *gorm.DB
	Client  platform.Client
	Channel int64
	Log     zerolog.Logger

	now func() time.Time // test seam
}

// NewDigest builds a digest job. Channel 0 disables posting.
func NewDigest(db *gorm.DB, client platform.Client, channel int64, log zerolog.Logger) *Digest {
	return &Digest{
		DB:      db,
		Client:  client,
		Channel: channel,
		Log:     log,
		now:     time.Now,
	}
}

// Register schedules the digest on c under the given cron spec. An empty
// spec or a zero channel leaves the job unscheduled.
func (d *Digest) Register(c *cron.Cron, spec string) error {
	if spec == "" || d.Channel == 0 {
		return nil
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.Run(ctx); err != nil {
			d.Log.Error().Err(err).Msg("daily digest failed")
		}
	})
	return err
}

// Run posts the rollup for the previous calendar day. Days with no lookups
// post nothing.
func (d *Digest) Run(ctx context.Context) error {
	date := d.now().AddDate(0, 0, -1).Format("2006-01-02")
	totals, err := repo.TotalsForDate(ctx, d.DB, date)
	if err != nil {
		return fmt.Errorf("digest totals for %s: %w", date, err)
	}
	if len(totals) == 0 {
		d.Log.Debug().Str("date", date).Msg("daily digest: no lookups, skipping")
		return nil
	}
	return d.Client.SendMessage(ctx, d.Channel, formatDigest(date, totals), &platform.SendOptions{
		ParseMode: "HTML",
	})
}

func formatDigest(date string, totals []repo.CommandTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Daily Report — %s</b>\n\n", date)
	var sum int64
	for _, t := range totals {
		fmt.Fprintf(&b, "/%s — %d\n", t.Command, t.Total)
		sum += t.Total
	}
	fmt.Fprintf(&b, "\nTotal lookups: <b>%d</b>", sum)
	return b.String()
}
