// Package ratelimit implements the store-backed sliding-window admission
// check shared by contact-request throttling and OTP issuance. A window is a
// keyed counter that resets once the elapsed time since its start exceeds the
// configured duration; an optional cooldown enforces minimum spacing between
// consecutive attempts independent of the counter.
//
// The window math lives in this file as pure functions of stored timestamps
// plus the current instant, so that the OtpChallenge record (which embeds the
// same four fields as a RateLimitWindow) can reuse it without a second
// implementation.
package ratelimit

import "time"

// NextWindow advances window state for one more admission at now. If the
// current window (startedAt, count) is still open it is kept and the count
// incremented; otherwise a fresh window opens at now with count 1.
//
// A zero startedAt (no prior record) always opens a new window.
func NextWindow(startedAt time.Time, count int, now time.Time, window time.Duration) (time.Time, int) {
	if startedAt.IsZero() || now.Sub(startedAt) >= window {
		return now, 1
	}
	return startedAt, count + 1
}

// CooldownRemaining returns how long the caller must still wait before the
// next attempt, or 0 when no cooldown applies. A zero lastRequestedAt means
// no prior attempt.
func CooldownRemaining(lastRequestedAt, now time.Time, cooldown time.Duration) time.Duration {
	if cooldown <= 0 || lastRequestedAt.IsZero() {
		return 0
	}
	if elapsed := now.Sub(lastRequestedAt); elapsed < cooldown {
		return cooldown - elapsed
	}
	return 0
}

// WindowRemaining returns the time left until the window opened at startedAt
// expires, or 0 when it already has.
func WindowRemaining(startedAt, now time.Time, window time.Duration) time.Duration {
	if startedAt.IsZero() {
		return 0
	}
	if elapsed := now.Sub(startedAt); elapsed < window {
		return window - elapsed
	}
	return 0
}

// Exhausted reports whether a window that is still open has used up its
// request budget.
func Exhausted(startedAt time.Time, count int, now time.Time, window time.Duration, max int) bool {
	if startedAt.IsZero() {
		return false
	}
	return now.Sub(startedAt) < window && count >= max
}
