// Package services – OtpService
//
// This file implements OtpService, the application-level component that owns
// the one-time-passcode lifecycle: issue, hash, deliver, verify, expire.
// Issuance throttling (sliding window + cooldown) is stored on the challenge
// record itself; the window math is shared with the generic rate limiter
// (internal/ratelimit) rather than re-implemented.
//
// State machine per phone: NONE → ISSUED → {VERIFIED (record deleted) |
// EXPIRED | ATTEMPTS_EXHAUSTED}. A challenge is single-use: successful
// verification deletes it with a conditional delete scoped by the verified
// hash, so racing verifiers cannot both succeed.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// no phone numbers or codes.
package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanishchat/backend/internal/auth"
	"github.com/vanishchat/backend/internal/domain"
	"github.com/vanishchat/backend/internal/ratelimit"
	"github.com/vanishchat/backend/internal/repo"
	"github.com/vanishchat/backend/internal/sms"
)

// OtpService issues and verifies one-time passcodes per phone number.
type OtpService struct {
	DB        *gorm.DB
	Transport sms.Transport
	Tokens    auth.CredentialIssuer

	// Secret keys the HMAC over "phone:code". It never appears in responses.
	Secret []byte

	// CodeTTL is the challenge lifetime (default 5m).
	CodeTTL time.Duration
	// RequestPolicy throttles issuance per phone (default 10m window, max 5,
	// 60s cooldown).
	RequestPolicy ratelimit.Policy
	// MaxAttempts caps failed verifications per challenge (default 5).
	MaxAttempts int
	// CodeDigits is the zero-padded code width (default 6).
	CodeDigits int
	// SessionTTL is the validity of the credential minted on success (default 24h).
	SessionTTL time.Duration

	// DevMode replaces random generation with DevCode and skips delivery.
	// It exists to make manual and integration testing deterministic and must
	// never be enabled for real delivery.
	DevMode bool
	DevCode string

	// Now is the clock; defaults to time.Now. Tests inject fixed instants.
	Now func() time.Time
}

// DefaultOtpPolicy throttles issuance per phone: 5 per 10 minutes with 60s
// spacing.
var DefaultOtpPolicy = ratelimit.Policy{
	Window:      10 * time.Minute,
	MaxRequests: 5,
	Cooldown:    60 * time.Second,
}

func (s *OtpService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OtpService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return 5 * time.Minute
}

func (s *OtpService) policy() ratelimit.Policy {
	if s.RequestPolicy.Window > 0 {
		return s.RequestPolicy
	}
	return DefaultOtpPolicy
}

func (s *OtpService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 5
}

func (s *OtpService) digits() int {
	if s.CodeDigits > 0 {
		return s.CodeDigits
	}
	return 6
}

func (s *OtpService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return 24 * time.Hour
}

// Request issues (or reissues) a challenge for phone and dispatches the code.
// It returns the challenge expiry. Admission follows the sliding-window +
// cooldown policy held on the challenge row: a cooldown rejection persists
// nothing, a window rejection stamps last_requested_at only.
func (s *OtpService) Request(ctx context.Context, phone string) (time.Time, error) {
	tr := otel.Tracer("services/OtpService")
	ctx, span := tr.Start(ctx, "Request",
		trace.WithAttributes(attribute.Bool("otp.dev_mode", s.DevMode)),
	)
	defer span.End()

	now := s.now()
	pol := s.policy()

	existing, err := repo.GetOtpChallenge(ctx, s.DB, phone)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return time.Time{}, err
	}

	var startedAt, lastAt time.Time
	var count int
	if existing != nil {
		startedAt = existing.WindowStartedAt
		count = existing.RequestCount
		lastAt = existing.LastRequestedAt
	}

	if wait := ratelimit.CooldownRemaining(lastAt, now, pol.Cooldown); wait > 0 {
		return time.Time{}, &RateLimitedError{RetryAfter: wait}
	}
	if ratelimit.Exhausted(startedAt, count, now, pol.Window, pol.MaxRequests) {
		retry := ratelimit.WindowRemaining(startedAt, now, pol.Window)
		if err := repo.TouchOtpChallenge(ctx, s.DB, phone, now); err != nil {
			return time.Time{}, err
		}
		return time.Time{}, &RateLimitedError{RetryAfter: retry}
	}

	code, err := s.generateCode()
	if err != nil {
		return time.Time{}, err
	}

	startedAt, count = ratelimit.NextWindow(startedAt, count, now, pol.Window)
	expiresAt := now.Add(s.codeTTL())
	ch := &domain.OtpChallenge{
		Phone:           phone,
		CodeHash:        s.hash(phone, code),
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
		Attempts:        0,
		LastRequestedAt: now,
		RequestCount:    count,
		WindowStartedAt: startedAt,
	}
	if err := repo.UpsertOtpChallenge(ctx, s.DB, ch); err != nil {
		return time.Time{}, err
	}
	otpIssued.Inc()

	// Delivery is best effort: the code stays valid even if the send fails.
	if !s.DevMode && s.Transport != nil {
		body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
			code, int(s.codeTTL().Minutes()))
		res := s.Transport.Send(ctx, phone, body)
		if res.Status == sms.StatusFailed {
			log.Warn().
				Str("provider", res.Provider).
				Str("error", res.Err).
				Msg("otp delivery failed")
		}
	}

	return expiresAt, nil
}

// Verify checks code against the live challenge for phone. On success it
// consumes the challenge and mints a session credential, returning the token
// and its validity in seconds.
func (s *OtpService) Verify(ctx context.Context, phone, code string) (string, int64, error) {
	tr := otel.Tracer("services/OtpService")
	ctx, span := tr.Start(ctx, "Verify")
	defer span.End()

	now := s.now()

	ch, err := repo.GetOtpChallenge(ctx, s.DB, phone)
	if errors.Is(err, repo.ErrNotFound) {
		return "", 0, ErrOtpNotFound
	}
	if err != nil {
		return "", 0, err
	}

	if !now.Before(ch.ExpiresAt) {
		if err := repo.DeleteOtpChallenge(ctx, s.DB, phone); err != nil {
			return "", 0, err
		}
		return "", 0, ErrOtpExpired
	}

	if ch.Attempts >= s.maxAttempts() {
		return "", 0, ErrOtpAttemptsExhausted
	}

	if !s.match(ch.CodeHash, phone, code) {
		// The increment is scoped by the observed counter so concurrent
		// failures cannot lose updates; if another verifier advanced it
		// first the submitted code was still wrong.
		if _, err := repo.IncrementOtpAttempts(ctx, s.DB, phone, ch.Attempts); err != nil {
			return "", 0, err
		}
		return "", 0, ErrOtpInvalidCode
	}

	// Single use: the delete is scoped by the verified hash, so a racing
	// verifier or a concurrent reissue finds nothing to consume.
	applied, err := repo.ConsumeOtpChallenge(ctx, s.DB, phone, ch.CodeHash)
	if err != nil {
		return "", 0, err
	}
	if !applied {
		return "", 0, ErrOtpNotFound
	}
	otpVerified.Inc()

	ttl := s.sessionTTL()
	token, err := s.Tokens.Mint(phone, now, now.Add(ttl))
	if err != nil {
		return "", 0, err
	}
	return token, int64(ttl.Seconds()), nil
}

// generateCode returns a uniformly random zero-padded numeric code, or the
// fixed fallback in dev mode.
func (s *OtpService) generateCode() (string, error) {
	if s.DevMode {
		if s.DevCode != "" {
			return s.DevCode, nil
		}
		return "123456", nil
	}
	digits := s.digits()
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// hash computes the hex HMAC-SHA256 of "phone:code" under the service secret.
func (s *OtpService) hash(phone, code string) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(phone + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

// match compares the stored hash against the hash of the submitted code.
// hmac.Equal keeps the comparison constant time so timing cannot leak how
// many bytes matched.
func (s *OtpService) match(storedHash, phone, code string) bool {
	expected, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	candidate, err := hex.DecodeString(s.hash(phone, code))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, candidate)
}
