// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the AuditLog model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vanishchat/backend/internal/domain"
)

// CreateAuditLog appends one audit event row. metadata is expected to be a
// JSON document (or empty).
func CreateAuditLog(ctx context.Context, db *gorm.DB, action, actorID, targetID, metadata string, now time.Time) error {
	rec := &domain.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Metadata:  metadata,
		CreatedAt: now,
	}
	return db.WithContext(ctx).Create(rec).Error
}

// ListAuditLogs returns recent events for an action, newest first.
func ListAuditLogs(ctx context.Context, db *gorm.DB, action string, limit int) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	q := db.WithContext(ctx).Order("created_at desc")
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
