// Package httpapi wires the HTTP transport (Gin) to the gateway. This file
// holds the webhook endpoint and the update deduper: the platform redelivers
// updates it considers unacknowledged, so replays within the TTL are dropped
// before they reach the dispatcher.
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nullprotocols/telegram/internal/bot"
	"github.com/Nullprotocols/telegram/internal/http/middleware"
	"github.com/Nullprotocols/telegram/internal/platform"
)

// Deduper remembers recently seen update IDs with a TTL. Entries are swept
// opportunistically so memory stays bounded without a background goroutine.
type Deduper struct {
	ttl time.Duration

	mu   sync.Mutex
	seen map[int64]time.Time
	n    int
}

// NewDeduper builds a Deduper. ttl <= 0 defaults to five minutes.
func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Deduper{ttl: ttl, seen: make(map[int64]time.Time)}
}

// Seen records the update ID and reports whether it was already present
// within the TTL.
func (d *Deduper) Seen(id int64) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	d.n++
	if d.n >= 10000 {
		for k, at := range d.seen {
			if now.Sub(at) >= d.ttl {
				delete(d.seen, k)
			}
		}
		d.n = 0
	}

	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.seen[id] = now
	return false
}

// WebhookHandler decodes one platform update and feeds it to the bot. The
// response is always 200 for decodable updates — a non-2xx only makes the
// platform replay the same update.
func WebhookHandler(b *bot.Bot, dedup *Deduper) gin.HandlerFunc {
	return func(c *gin.Context) {
		var u platform.Update
		if err := c.ShouldBindJSON(&u); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "malformed update"})
			return
		}
		if dedup.Seen(u.UpdateID) {
			middleware.LoggerFrom(c).Debug().Int64("update_id", u.UpdateID).Msg("duplicate update dropped")
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
		b.HandleUpdate(c.Request.Context(), &u)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
