package ratelimit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vanishchat/backend/internal/repo"
)

// Policy configures one admission check: a sliding window of at most
// MaxRequests, with an optional Cooldown spacing between attempts.
type Policy struct {
	Window      time.Duration
	MaxRequests int
	Cooldown    time.Duration // 0 disables the cooldown check
}

// Decision is the outcome of an admission check. RetryAfter is only set on
// rejection and tells the caller when the next attempt can succeed.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter evaluates Policy against the persisted window record for a key.
// It has no knowledge of what the key represents; callers namespace their
// keys (e.g. "contact-request:<requesterID>:<clientIP>").
//
// The check is read-modify-write over a single keyed row with last-writer-
// wins upserts, so two concurrent calls against an empty window can both be
// admitted. That imprecision is accepted: this is a soft limit, not a hard
// guarantee.
type Limiter struct {
	DB *gorm.DB

	// Now is the clock; defaults to time.Now. Tests inject fixed instants.
	Now func() time.Time
}

// NewLimiter constructs a Limiter over db using the wall clock.
func NewLimiter(db *gorm.DB) *Limiter {
	return &Limiter{DB: db, Now: time.Now}
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// Admit runs the admission check for key under p and advances the stored
// window state. The boolean decision is the only branch signal; errors are
// reserved for store failures.
//
// Order of evaluation mirrors the policy: cooldown first (rejection does not
// persist anything), then window budget (rejection still stamps
// last_requested_at), then admission with the advanced counter.
func (l *Limiter) Admit(ctx context.Context, key string, p Policy) (Decision, error) {
	now := l.now()

	existing, err := repo.GetRateLimitWindow(ctx, l.DB, key)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return Decision{}, err
	}

	var (
		startedAt time.Time
		count     int
		lastAt    time.Time
	)
	if existing != nil {
		startedAt = existing.WindowStartedAt
		count = existing.RequestCount
		lastAt = existing.LastRequestedAt
	}

	if wait := CooldownRemaining(lastAt, now, p.Cooldown); wait > 0 {
		return Decision{Allowed: false, RetryAfter: wait}, nil
	}

	if Exhausted(startedAt, count, now, p.Window, p.MaxRequests) {
		retry := WindowRemaining(startedAt, now, p.Window)
		if err := repo.UpsertRateLimitWindow(ctx, l.DB, key, startedAt, count, now); err != nil {
			return Decision{}, err
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	startedAt, count = NextWindow(startedAt, count, now, p.Window)
	if err := repo.UpsertRateLimitWindow(ctx, l.DB, key, startedAt, count, now); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true}, nil
}
