package convo

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGetClear(t *testing.T) {
	s := NewMemory(0) // DefaultTTL
	ctx := context.Background()

	f, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.State != StateIdle {
		t.Fatalf("fresh actor state = %q; want idle", f.State)
	}

	want := Form{State: StateAwaitingBulkBody, IDs: "1,2,3"}
	if err := s.Set(ctx, 1, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Fatalf("Get = %+v; want %+v", got, want)
	}

	if err := s.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get after clear: %v", err)
	}
	if got.State != StateIdle {
		t.Fatalf("state after clear = %q; want idle", got.State)
	}
}

func TestMemory_ExpiredFormReadsAsIdle(t *testing.T) {
	s := NewMemory(10 * time.Millisecond)
	ctx := context.Background()

	if err := s.Set(ctx, 2, Form{State: StateAwaitingMessage}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	f, err := s.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.State != StateIdle {
		t.Fatalf("expired form state = %q; want idle", f.State)
	}
}

func TestMemory_SetRestartsTTL(t *testing.T) {
	s := NewMemory(40 * time.Millisecond)
	ctx := context.Background()

	if err := s.Set(ctx, 3, Form{State: StateAwaitingMessage}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if err := s.Set(ctx, 3, Form{State: StateAwaitingBulkIDs}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	f, err := s.Get(ctx, 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.State != StateAwaitingBulkIDs {
		t.Fatalf("state = %q; want refreshed form still alive", f.State)
	}
}

func TestMemory_ActorsAreIsolated(t *testing.T) {
	s := NewMemory(0)
	ctx := context.Background()

	if err := s.Set(ctx, 4, Form{State: StateAwaitingMessage}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	f, err := s.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.State != StateIdle {
		t.Fatalf("actor 5 sees actor 4's form: %+v", f)
	}
}
