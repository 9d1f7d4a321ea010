// Package broadcast pushes one message to many recipients, honoring the
// platform's throttle signal and tolerating partial failure. Delivery is
// best effort: the batch always completes and reports how many recipients
// were actually reached.
package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Nullprotocols/telegram/internal/platform"
)

var relays = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_broadcast_relays_total",
		Help: "Broadcast relay attempts by outcome.",
	},
	[]string{"outcome"}, // ok | throttled | failed
)

func init() {
	prometheus.MustRegister(relays)
}

// Relay delivers the broadcast payload to a single recipient. It may return
// *platform.ThrottledError to demand a wait.
type Relay func(ctx context.Context, recipient int64) error

// Engine iterates a recipient set with proactive pacing between successful
// relays. Safe for concurrent use, though a single broadcast runs
// sequentially by design: recipient order is part of the contract.
type Engine struct {
	// pace spaces successful relays (default 10/s, i.e. 100ms apart).
	pace *rate.Limiter
	// RetryThrottled re-attempts a throttled recipient once after honoring
	// the wait. Off by default: the documented behavior is wait-then-skip.
	RetryThrottled bool

	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an Engine. delay is the pause between successful relays;
// <= 0 uses the 100ms default.
func New(delay time.Duration, log zerolog.Logger) *Engine {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Engine{
		pace:  rate.NewLimiter(rate.Every(delay), 1),
		log:   log.With().Str("component", "broadcast").Logger(),
		sleep: sleepCtx,
	}
}

// Send relays to each recipient in order and returns the success count.
//
// Per-recipient behavior:
//   - success: counted, then paced before the next recipient
//   - throttle signal: the wait is honored, then the loop moves on — the
//     throttled recipient is skipped unless RetryThrottled is set, in which
//     case it gets exactly one more attempt
//   - any other failure: skipped silently (logged at debug)
//
// Send never fails the batch for a single recipient; it returns early only
// when the context is canceled.
func (e *Engine) Send(ctx context.Context, recipients []int64, relay Relay) int {
	success := 0
	for _, rcpt := range recipients {
		if ctx.Err() != nil {
			break
		}
		err := relay(ctx, rcpt)

		var thr *platform.ThrottledError
		if errors.As(err, &thr) {
			relays.WithLabelValues("throttled").Inc()
			e.log.Warn().Int64("recipient", rcpt).Dur("retry_after", thr.RetryAfter).Msg("throttled")
			if serr := e.sleep(ctx, thr.RetryAfter); serr != nil {
				break
			}
			if !e.RetryThrottled {
				continue
			}
			err = relay(ctx, rcpt)
			if errors.As(err, &thr) {
				// Still throttled after the wait; give up on this recipient.
				relays.WithLabelValues("throttled").Inc()
				continue
			}
		}
		if err != nil {
			relays.WithLabelValues("failed").Inc()
			e.log.Debug().Int64("recipient", rcpt).Err(err).Msg("relay failed")
			continue
		}

		relays.WithLabelValues("ok").Inc()
		success++
		if werr := e.pace.Wait(ctx); werr != nil {
			break
		}
	}
	return success
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
