package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_models_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(RateLimitWindow{}).TableName(): "rate_limit_windows",
		(OtpChallenge{}).TableName():    "otp_challenges",
		(ContactRequest{}).TableName():  "contact_requests",
		(Contact{}).TableName():         "contacts",
		(Message{}).TableName():         "messages",
		(AuditLog{}).TableName():        "audit_logs",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_TablesAndIndexes(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(
		&RateLimitWindow{}, &OtpChallenge{}, &ContactRequest{},
		&Contact{}, &Message{}, &AuditLog{}, &Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{
		&RateLimitWindow{}, &OtpChallenge{}, &ContactRequest{},
		&Contact{}, &Message{}, &AuditLog{}, &Idempotency{},
	} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	if !m.HasIndex(&Contact{}, "ux_contact_pair") {
		t.Fatalf("expected unique index ux_contact_pair on contacts")
	}
	if !m.HasIndex(&Message{}, "idx_sender_created") || !m.HasIndex(&Message{}, "idx_receiver_created") {
		t.Fatalf("expected sender/receiver listing indexes on messages")
	}
	if !m.HasIndex(&Idempotency{}, "ux_sender_receiver_key") {
		t.Fatalf("expected unique index ux_sender_receiver_key on idempotency")
	}
}

func TestContactRequest_StatusCheckConstraint(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&ContactRequest{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	bad := &ContactRequest{
		ID:        uuid.NewString(),
		Requester: Participant{ID: "u1", Name: "A"},
		Receiver:  Participant{ID: "u2", Name: "B"},
		Status:    "cancelled", // not a lifecycle state
	}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected check constraint violation for status %q", bad.Status)
	}
}

func TestContact_PairKeyUnique(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Contact{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	a := Participant{ID: "u1", Name: "A"}
	b := Participant{ID: "u2", Name: "B"}

	c1 := &Contact{ID: uuid.NewString(), PairKey: "u1|u2", ParticipantA: a, ParticipantB: b}
	if err := db.Create(c1).Error; err != nil {
		t.Fatalf("create first contact: %v", err)
	}
	// Same unordered pair, reversed roles: collides on PairKey.
	c2 := &Contact{ID: uuid.NewString(), PairKey: "u1|u2", ParticipantA: b, ParticipantB: a}
	if err := db.Create(c2).Error; err == nil {
		t.Fatalf("expected unique violation on PairKey")
	}
}

func TestContact_ParticipantIDs_Sorted(t *testing.T) {
	c := &Contact{
		ParticipantA: Participant{ID: "zz"},
		ParticipantB: Participant{ID: "aa"},
	}
	if got := c.ParticipantIDs(); got != [2]string{"aa", "zz"} {
		t.Fatalf("ParticipantIDs() = %v; want sorted pair", got)
	}
	c = &Contact{
		ParticipantA: Participant{ID: "aa"},
		ParticipantB: Participant{ID: "zz"},
	}
	if got := c.ParticipantIDs(); got != [2]string{"aa", "zz"} {
		t.Fatalf("ParticipantIDs() = %v; want sorted pair", got)
	}
}

func TestMessage_Visible(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m := &Message{}
	if !m.Visible(now) {
		t.Fatalf("message without deletion stamp must be visible")
	}

	future := now.Add(29 * time.Second)
	m.DeletionAt = &future
	if !m.Visible(now) {
		t.Fatalf("message with future deletion must be visible")
	}

	past := now.Add(-time.Second)
	m.DeletionAt = &past
	if m.Visible(now) {
		t.Fatalf("message past deletion must not be visible")
	}

	// Boundary: deletion exactly now is no longer visible.
	m.DeletionAt = &now
	if m.Visible(now) {
		t.Fatalf("message at its deletion instant must not be visible")
	}
}
