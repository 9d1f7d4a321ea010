package repo

import (
	"context"
	"testing"
	"time"
)

func TestAppendLookup_AndHistoryOrder(t *testing.T) {
	db := newGatewayDB(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := []struct {
		cmd, query string
		ts         time.Time
	}{
		{"pin", "110001", base},
		{"ip", "1.1.1.1", base.Add(time.Minute)},
		{"ifsc", "SBIN0000001", base.Add(2 * time.Minute)},
	}
	for _, r := range rows {
		if err := AppendLookup(ctx, db, 9, r.cmd, r.query, `{"ok":true}`, r.ts); err != nil {
			t.Fatalf("AppendLookup(%s): %v", r.cmd, err)
		}
	}
	// Another user's row must not leak into the history.
	if err := AppendLookup(ctx, db, 10, "pin", "560001", `{}`, base); err != nil {
		t.Fatalf("AppendLookup other user: %v", err)
	}

	hist, err := UserLookups(ctx, db, 9)
	if err != nil {
		t.Fatalf("UserLookups: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("len(hist) = %d; want 3", len(hist))
	}
	if hist[0].Command != "ifsc" || hist[2].Command != "pin" {
		t.Fatalf("history not ordered most-recent-first: %+v", hist)
	}

	total, err := CountLookups(ctx, db)
	if err != nil {
		t.Fatalf("CountLookups: %v", err)
	}
	if total != 4 {
		t.Fatalf("CountLookups = %d; want 4", total)
	}
}
