package repo

import (
	"context"
	"testing"
	"time"
)

func TestUpsertRateLimitWindow_LastWriterWins(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := UpsertRateLimitWindow(ctx, db, "k1", now, 1, now); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	later := now.Add(time.Minute)
	if err := UpsertRateLimitWindow(ctx, db, "k1", now, 2, later); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	w, err := GetRateLimitWindow(ctx, db, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.RequestCount != 2 || !w.LastRequestedAt.Equal(later) {
		t.Fatalf("unexpected state: %+v", w)
	}
}

func TestDeleteExpiredRateLimitWindows(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := UpsertRateLimitWindow(ctx, db, "idle", now.Add(-2*time.Hour), 3, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("upsert idle: %v", err)
	}
	if err := UpsertRateLimitWindow(ctx, db, "live", now, 1, now); err != nil {
		t.Fatalf("upsert live: %v", err)
	}

	n, err := DeleteExpiredRateLimitWindows(ctx, db, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped %d; want 1", n)
	}
	if _, err := GetRateLimitWindow(ctx, db, "live"); err != nil {
		t.Fatalf("live window must survive: %v", err)
	}
}
