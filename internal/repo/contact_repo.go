// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ContactRequest and Contact models.
//
// Error semantics:
//   - A second pending request for the same (requester, receiver) pair, or a
//     second contact for the same unordered pair, violates a unique index and
//     is returned as ErrDuplicate.
//   - Resolution (accept/reject) is a conditional update scoped by the
//     pending status; a failed condition means another resolution landed
//     first and is reported as applied == false, never silently overwritten.
package repo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vanishchat/backend/internal/domain"
)

// PairKey derives the canonical unordered pair identity for two user ids.
func PairKey(idA, idB string) string {
	ids := []string{idA, idB}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// CreateContactRequest inserts a pending request row. The partial unique
// index on (requester_id, receiver_id) WHERE status='pending' rejects a
// duplicate pending pair, which is translated to ErrDuplicate.
func CreateContactRequest(ctx context.Context, db *gorm.DB, requester, receiver domain.Participant, now time.Time) (*domain.ContactRequest, error) {
	cr := &domain.ContactRequest{
		ID:        uuid.NewString(),
		Requester: requester,
		Receiver:  receiver,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(cr).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return cr, nil
}

// GetContactRequest fetches a request by id, or ErrNotFound.
func GetContactRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ContactRequest, error) {
	var cr domain.ContactRequest
	err := db.WithContext(ctx).Where("id = ?", id).First(&cr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// ResolveContactRequest transitions a request from pending to the given
// terminal status. The update only applies while the row is still pending;
// applied == false means a concurrent resolution won.
func ResolveContactRequest(ctx context.Context, db *gorm.DB, id, status string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ContactRequest{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{"status": status, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPendingRequests returns pending requests addressed to receiverID,
// newest first.
func ListPendingRequests(ctx context.Context, db *gorm.DB, receiverID string) ([]domain.ContactRequest, error) {
	var out []domain.ContactRequest
	err := db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", receiverID, domain.StatusPending).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CreateContact inserts the contact row for an accepted pair. The unique
// index on pair_key makes the insert idempotent at the caller: a duplicate
// pair returns ErrDuplicate, which accept treats as success.
func CreateContact(ctx context.Context, db *gorm.DB, a, b domain.Participant, now time.Time) (*domain.Contact, error) {
	c := &domain.Contact{
		ID:           uuid.NewString(),
		PairKey:      PairKey(a.ID, b.ID),
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// SearchContactsByPhone returns up to limit contacts of ownerID whose other
// participant carries the given normalized phone number.
func SearchContactsByPhone(ctx context.Context, db *gorm.DB, ownerID, phone string, limit int) ([]domain.Contact, error) {
	var out []domain.Contact
	q := db.WithContext(ctx).
		Where("(a_id = ? OR b_id = ?)", ownerID, ownerID).
		Where("(a_phone = ? OR b_phone = ?)", phone, phone)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
