package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vanishchat/backend/internal/repo"
)

func newAuditDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:audit_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestStoreSink_RecordsEventWithJSONMetadata(t *testing.T) {
	db := newAuditDB(t)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sink := &StoreSink{DB: db, Now: func() time.Time { return fixed }}

	sink.Record(context.Background(), ActionMessageDeleted, "u-1", "m-1", map[string]string{
		"sender_id":   "u-1",
		"receiver_id": "u-2",
	})

	out, err := repo.ListAuditLogs(context.Background(), db, ActionMessageDeleted, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len = %d; want 1", len(out))
	}
	rec := out[0]
	if rec.ActorID != "u-1" || rec.TargetID != "m-1" {
		t.Fatalf("unexpected row: %+v", rec)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("CreatedAt = %v; want injected clock %v", rec.CreatedAt, fixed)
	}

	var meta map[string]string
	if err := json.Unmarshal([]byte(rec.Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v (%q)", err, rec.Metadata)
	}
	if meta["receiver_id"] != "u-2" {
		t.Fatalf("metadata = %v", meta)
	}
}

func TestStoreSink_EmptyMetadata(t *testing.T) {
	db := newAuditDB(t)
	sink := NewStoreSink(db)

	sink.Record(context.Background(), ActionContactRequestRejected, "u-2", "r-1", nil)

	out, err := repo.ListAuditLogs(context.Background(), db, ActionContactRequestRejected, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].Metadata != "" {
		t.Fatalf("expected one row with empty metadata; got %+v", out)
	}
}

func TestStoreSink_WriteFailureDoesNotPanic(t *testing.T) {
	// No migration: the insert fails, which must be swallowed.
	dsn := fmt.Sprintf("file:audit_fail_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sink := NewStoreSink(db)
	sink.Record(context.Background(), ActionMessageDeleted, "u-1", "m-1", nil)
}

func TestNopSink(t *testing.T) {
	NopSink{}.Record(context.Background(), ActionMessageDeleted, "u-1", "m-1", nil)
}
