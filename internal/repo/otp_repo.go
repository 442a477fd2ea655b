// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// OtpChallenge model.
//
// Error semantics:
//   - When a challenge is not found, functions return ErrNotFound.
//   - State transitions (attempts increment) are conditional updates scoped
//     by the previously observed value; a failed condition reports applied ==
//     false and the caller treats it as a concurrent-modification conflict.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vanishchat/backend/internal/domain"
)

// GetOtpChallenge fetches the live challenge for phone, or ErrNotFound.
func GetOtpChallenge(ctx context.Context, db *gorm.DB, phone string) (*domain.OtpChallenge, error) {
	var ch domain.OtpChallenge
	err := db.WithContext(ctx).Where("phone = ?", phone).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// UpsertOtpChallenge writes the full challenge state for phone, replacing any
// previous challenge (a fresh issue invalidates the old code and resets
// attempts).
func UpsertOtpChallenge(ctx context.Context, db *gorm.DB, ch *domain.OtpChallenge) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			UpdateAll: true,
		}).
		Create(ch).Error
}

// IncrementOtpAttempts bumps the failed-verification counter, but only if the
// stored counter still equals the value the caller just observed. It returns
// false when another verifier advanced the counter first.
func IncrementOtpAttempts(ctx context.Context, db *gorm.DB, phone string, observed int) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.OtpChallenge{}).
		Where("phone = ? AND attempts = ?", phone, observed).
		Update("attempts", observed+1)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TouchOtpChallenge stamps last_requested_at on the challenge without
// touching the code or counters. Used on window-limited requests, where the
// admission policy still records the attempt instant.
func TouchOtpChallenge(ctx context.Context, db *gorm.DB, phone string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.OtpChallenge{}).
		Where("phone = ?", phone).
		Update("last_requested_at", now).Error
}

// DeleteOtpChallenge removes the challenge for phone. Used on successful
// verification (single-use) and on observed expiry. Deleting an absent row is
// not an error.
func DeleteOtpChallenge(ctx context.Context, db *gorm.DB, phone string) error {
	return db.WithContext(ctx).Where("phone = ?", phone).Delete(&domain.OtpChallenge{}).Error
}

// ConsumeOtpChallenge deletes the challenge only if its stored hash still
// matches the one the caller verified against. It returns false when the
// challenge was already consumed or replaced concurrently, guaranteeing
// single use even under racing verifiers.
func ConsumeOtpChallenge(ctx context.Context, db *gorm.DB, phone, codeHash string) (bool, error) {
	res := db.WithContext(ctx).
		Where("phone = ? AND code_hash = ?", phone, codeHash).
		Delete(&domain.OtpChallenge{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpiredOtpChallenges removes challenges whose expiry is before
// cutoff. Storage hygiene; expiry is enforced at read time regardless.
func DeleteExpiredOtpChallenges(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&domain.OtpChallenge{})
	return res.RowsAffected, res.Error
}
