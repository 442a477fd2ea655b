// Package services defines the business logic for OTP challenges, contact
// requests, and ephemeral messages. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

// OTP-related errors.
var (
	// ErrOtpNotFound indicates that no live challenge exists for the phone
	// (never issued, already consumed, or reaped).
	ErrOtpNotFound = errors.New("otp not found")

	// ErrOtpExpired is returned when the challenge's expiry has passed. The
	// record is deleted on observation.
	ErrOtpExpired = errors.New("otp has expired")

	// ErrOtpAttemptsExhausted is returned once the failed-verification cap is
	// reached. The record is retained so the limit keeps applying until a
	// fresh issue resets it.
	ErrOtpAttemptsExhausted = errors.New("too many failed attempts")

	// ErrOtpInvalidCode is returned when the submitted code does not match
	// the stored hash.
	ErrOtpInvalidCode = errors.New("invalid otp code")
)

// Contact-request errors.
var (
	// ErrRequestNotFound indicates that the contact request does not exist.
	ErrRequestNotFound = errors.New("contact request not found")

	// ErrRequestResolved is returned when accept/reject finds the request
	// already in a terminal state (including losing a resolution race).
	ErrRequestResolved = errors.New("contact request already resolved")

	// ErrSelfRequest is returned when requester and receiver are the same user.
	ErrSelfRequest = errors.New("requester and receiver must be different users")

	// ErrDuplicatePending is returned when a pending request already exists
	// for the (requester, receiver) pair.
	ErrDuplicatePending = errors.New("pending request already exists")
)

// Message errors.
var (
	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrReceiverMismatch is returned when a read receipt names a receiver
	// other than the one the message was addressed to.
	ErrReceiverMismatch = errors.New("receiver does not match message")

	// ErrNotParticipant is returned when a delete is requested by someone who
	// is neither sender nor receiver.
	ErrNotParticipant = errors.New("requester is not a party to this message")

	// ErrMessageGone is returned when the message's deletion instant has
	// already passed.
	ErrMessageGone = errors.New("message has already been deleted")
)

// RateLimitedError reports a rejected admission together with the wait the
// caller must observe before retrying. Use errors.As to extract it and
// errors.Is(err, ErrRateLimited) to branch on the kind.
type RateLimitedError struct {
	RetryAfter time.Duration
}

// ErrRateLimited is the sentinel target for RateLimitedError.
var ErrRateLimited = errors.New("rate limited")

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) succeed for RateLimitedError values.
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }
