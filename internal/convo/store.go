// Package convo holds the multi-step conversational state behind the
// broadcast and bulk-DM forms. The state machine is explicit and keyed by
// actor id, with a TTL standing in for the timeout-back-to-idle transition;
// /cancel clears it eagerly. The store lives outside the pipeline core:
// commands consult it, the lookup pipeline never does.
package convo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// State names one step of a form.
type State string

// Form states. Idle is the zero value: no form in progress.
const (
	StateIdle             State = ""
	StateAwaitingMessage  State = "broadcast:awaiting_message"
	StateAwaitingBulkIDs  State = "bulkdm:awaiting_ids"
	StateAwaitingBulkBody State = "bulkdm:awaiting_message"
)

// Form is the per-actor conversational state.
type Form struct {
	State State  `json:"state"`
	// IDs holds the raw recipient list collected by the bulk-DM form.
	IDs string `json:"ids,omitempty"`
}

// Store persists per-actor form state with expiry.
type Store interface {
	// Get returns the actor's form, or the zero Form when idle or expired.
	Get(ctx context.Context, actorID int64) (Form, error)
	// Set stores the actor's form, restarting its TTL.
	Set(ctx context.Context, actorID int64, f Form) error
	// Clear transitions the actor back to idle.
	Clear(ctx context.Context, actorID int64) error
}

// DefaultTTL bounds how long an unfinished form survives.
const DefaultTTL = 15 * time.Minute

// ---- In-memory store ----

type memEntry struct {
	form    Form
	expires time.Time
}

// Memory is a process-local Store. Expired entries are dropped lazily on
// read and opportunistically on write.
type Memory struct {
	ttl time.Duration

	mu sync.Mutex
	m  map[int64]memEntry
	n  int
}

// NewMemory builds an in-memory store. ttl <= 0 uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, m: make(map[int64]memEntry)}
}

// Get implements Store.
func (s *Memory) Get(_ context.Context, actorID int64) (Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[actorID]
	if !ok {
		return Form{}, nil
	}
	if time.Now().After(e.expires) {
		delete(s.m, actorID)
		return Form{}, nil
	}
	return e.form, nil
}

// Set implements Store.
func (s *Memory) Set(_ context.Context, actorID int64, f Form) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	// Opportunistic sweep so abandoned forms do not accumulate.
	s.n++
	if s.n >= 1000 {
		for k, e := range s.m {
			if now.After(e.expires) {
				delete(s.m, k)
			}
		}
		s.n = 0
	}
	s.m[actorID] = memEntry{form: f, expires: now.Add(s.ttl)}
	return nil
}

// Clear implements Store.
func (s *Memory) Clear(_ context.Context, actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, actorID)
	return nil
}

// ---- Redis store ----

// Redis is a Store backed by go-redis, for deployments where the gateway
// restarts must not drop half-finished forms.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis builds a Redis-backed store. ttl <= 0 uses DefaultTTL.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func convoKey(actorID int64) string {
	return fmt.Sprintf("convo:%d", actorID)
}

// Get implements Store.
func (s *Redis) Get(ctx context.Context, actorID int64) (Form, error) {
	val, err := s.rdb.Get(ctx, convoKey(actorID)).Result()
	if errors.Is(err, redis.Nil) {
		return Form{}, nil
	}
	if err != nil {
		return Form{}, err
	}
	var f Form
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return Form{}, err
	}
	return f, nil
}

// Set implements Store.
func (s *Redis) Set(ctx context.Context, actorID int64, f Form) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, convoKey(actorID), data, s.ttl).Err()
}

// Clear implements Store.
func (s *Redis) Clear(ctx context.Context, actorID int64) error {
	return s.rdb.Del(ctx, convoKey(actorID)).Err()
}
