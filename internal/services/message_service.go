// Package services – MessageService
//
// This file implements MessageService, which owns the ephemeral message
// lifecycle: creation, read-triggered countdown to deletion, visibility
// filtering at read time, and requester-initiated early deletion.
//
// Disappearance is a visibility boundary, not a destructive write: the first
// read stamps deletion_at = read_at + grace once, every listing filters on
// it, and physical removal is left to the background reaper for storage
// hygiene only.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanishchat/backend/internal/audit"
	"github.com/vanishchat/backend/internal/domain"
	"github.com/vanishchat/backend/internal/repo"
	"github.com/vanishchat/backend/internal/validate"
)

// MessageService manages ephemeral messages.
type MessageService struct {
	DB    *gorm.DB
	Audit audit.Sink

	// Grace is the visibility window after first read (default 30s).
	Grace time.Duration

	// MaxBodyRunes caps message length; 0 disables the check.
	MaxBodyRunes int

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// ErrBodyTooLong is returned when a message body exceeds MaxBodyRunes.
var ErrBodyTooLong = errors.New("message body too long")

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MessageService) grace() time.Duration {
	if s.Grace > 0 {
		return s.Grace
	}
	return 30 * time.Second
}

func (s *MessageService) sink() audit.Sink {
	if s.Audit != nil {
		return s.Audit
	}
	return audit.NopSink{}
}

// Send validates and persists a new message with no read or deletion stamp.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, body string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(attribute.String("sender.id", senderID)),
	)
	defer span.End()

	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	body = strings.TrimSpace(body)

	var errs []validate.FieldError
	if senderID == "" {
		errs = append(errs, validate.FieldError{Field: "senderId", Message: "senderId is required."})
	}
	if receiverID == "" {
		errs = append(errs, validate.FieldError{Field: "receiverId", Message: "receiverId is required."})
	}
	if body == "" {
		errs = append(errs, validate.FieldError{Field: "body", Message: "body is required."})
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if s.MaxBodyRunes > 0 && len([]rune(body)) > s.MaxBodyRunes {
		return nil, ErrBodyTooLong
	}

	return repo.CreateMessage(ctx, s.DB, senderID, receiverID, body, s.now())
}

// ListFor returns all messages visible to participantID at the current
// instant, newest first. This filter is the only enforcement of
// disappearance; rows past their deletion instant may still exist physically
// until the reaper removes them.
func (s *MessageService) ListFor(ctx context.Context, participantID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListFor",
		trace.WithAttributes(attribute.String("participant.id", participantID)),
	)
	defer span.End()

	return repo.ListVisibleMessages(ctx, s.DB, participantID, s.now())
}

// MarkRead records the first read of a message by its receiver, fixing
// read_at and deletion_at = read_at + grace in one conditional update. A
// second call finds read_at already set and returns the stored stamps
// unchanged: first read wins.
func (s *MessageService) MarkRead(ctx context.Context, messageID, receiverID string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(attribute.String("message.id", messageID)),
	)
	defer span.End()

	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.ReceiverID != receiverID {
		return nil, ErrReceiverMismatch
	}
	if m.ReadAt != nil {
		return m, nil
	}

	readAt := s.now()
	deletionAt := readAt.Add(s.grace())
	applied, err := repo.MarkMessageRead(ctx, s.DB, messageID, readAt, deletionAt)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent reader stamped it first; return their stamps.
		return repo.GetMessage(ctx, s.DB, messageID)
	}

	m.ReadAt = &readAt
	m.DeletionAt = &deletionAt
	return m, nil
}

// Delete performs a requester-initiated early deletion, stamping deletion_at
// with the current instant regardless of read state. Only the sender or
// receiver may delete; a message whose deletion instant already passed
// reports ErrMessageGone. The deletion is recorded as an audit event.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("message.id", messageID)),
	)
	defer span.End()

	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if requesterID != m.SenderID && requesterID != m.ReceiverID {
		return nil, ErrNotParticipant
	}

	now := s.now()
	if m.DeletionAt != nil && !m.DeletionAt.After(now) {
		return nil, ErrMessageGone
	}

	applied, err := repo.StampMessageDeletion(ctx, s.DB, messageID, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrMessageGone
	}
	messagesDeleted.Inc()

	s.sink().Record(ctx, audit.ActionMessageDeleted, requesterID, messageID, map[string]string{
		"sender_id":   m.SenderID,
		"receiver_id": m.ReceiverID,
	})

	m.DeletionAt = &now
	return m, nil
}
