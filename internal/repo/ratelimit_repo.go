// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// RateLimitWindow model used by the sliding-window admission check.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vanishchat/backend/internal/domain"
)

// GetRateLimitWindow fetches the throttling record for key, or ErrNotFound.
func GetRateLimitWindow(ctx context.Context, db *gorm.DB, key string) (*domain.RateLimitWindow, error) {
	var w domain.RateLimitWindow
	err := db.WithContext(ctx).Where("key = ?", key).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpsertRateLimitWindow writes the full window state for key, last writer
// wins. Concurrent admissions against the same key may therefore both
// observe an empty window and both win; the limiter is a soft limit (see
// ratelimit.Limiter).
func UpsertRateLimitWindow(ctx context.Context, db *gorm.DB, key string, windowStartedAt time.Time, requestCount int, lastRequestedAt time.Time) error {
	w := &domain.RateLimitWindow{
		Key:             key,
		WindowStartedAt: windowStartedAt,
		RequestCount:    requestCount,
		LastRequestedAt: lastRequestedAt,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(w).Error
}

// DeleteExpiredRateLimitWindows removes window rows idle since before cutoff.
// Storage hygiene only; admission correctness never depends on it.
func DeleteExpiredRateLimitWindows(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("last_requested_at < ?", cutoff).
		Delete(&domain.RateLimitWindow{})
	return res.RowsAffected, res.Error
}
