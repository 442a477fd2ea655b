// Package audit implements the fire-and-forget audit sink. Events record who
// did what to which resource; recording never blocks or fails the caller's
// success path: a write error is logged and dropped.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vanishchat/backend/internal/repo"
)

// Audit action names.
const (
	ActionContactRequestRejected = "contact_request.rejected"
	ActionMessageDeleted         = "message.deleted"
)

// Sink records audit events. Implementations must be safe for concurrent use
// and must never propagate failures to the caller.
type Sink interface {
	Record(ctx context.Context, action, actorID, targetID string, metadata map[string]string)
}

// StoreSink persists audit events through the repo layer. The write happens
// on the caller's goroutine (one small insert) but its error is swallowed
// after logging, keeping the caller's success path intact.
type StoreSink struct {
	DB *gorm.DB

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewStoreSink constructs a StoreSink over db using the wall clock.
func NewStoreSink(db *gorm.DB) *StoreSink {
	return &StoreSink{DB: db, Now: time.Now}
}

// Record implements Sink.
func (s *StoreSink) Record(ctx context.Context, action, actorID, targetID string, metadata map[string]string) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	var meta string
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			meta = string(raw)
		}
	}
	if err := repo.CreateAuditLog(ctx, s.DB, action, actorID, targetID, meta, now); err != nil {
		log.Warn().
			Err(err).
			Str("action", action).
			Str("actor_id", actorID).
			Str("target_id", targetID).
			Msg("audit write dropped")
	}
}

// NopSink discards all events. Useful in tests.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, string, string, string, map[string]string) {}
