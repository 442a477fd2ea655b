// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vanishchat/backend/internal/domain"
)

// CreateMessage inserts a new message row with no read or deletion stamp.
func CreateMessage(ctx context.Context, db *gorm.DB, senderID, receiverID, body string, now time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by ID, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListVisibleMessages returns all messages where participantID is sender or
// receiver and the deletion instant has not passed, newest first. Visibility
// is computed here at read time; rows past their deletion instant may still
// exist physically until the reaper removes them.
func ListVisibleMessages(ctx context.Context, db *gorm.DB, participantID string, now time.Time) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?)", participantID, participantID).
		Where("(deletion_at IS NULL OR deletion_at > ?)", now).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// MarkMessageRead stamps read_at and deletion_at in a single conditional
// update that only applies while read_at is still unset, so the first read
// wins and the stamps are never moved. It returns false when the message was
// already read.
func MarkMessageRead(ctx context.Context, db *gorm.DB, id string, readAt, deletionAt time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Updates(map[string]any{"read_at": readAt, "deletion_at": deletionAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// StampMessageDeletion sets deletion_at to now for a requester-initiated
// early delete. The update only applies while the stored deletion instant is
// unset or still in the future; applied == false means the message was
// already gone.
func StampMessageDeletion(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND (deletion_at IS NULL OR deletion_at > ?)", id, now).
		Update("deletion_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpiredMessages physically removes rows whose deletion instant is
// before cutoff. Storage hygiene only; visibility filtering is the
// correctness boundary.
func DeleteExpiredMessages(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("deletion_at IS NOT NULL AND deletion_at < ?", cutoff).
		Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}
