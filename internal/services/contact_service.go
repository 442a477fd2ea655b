// Package services – ContactService
//
// This file implements ContactService, which owns the contact-request ledger:
// the pending → accepted/rejected state machine and the derived, deduplicated
// contact relationship. Creation is throttled through the generic sliding-
// window limiter keyed by (requester, client address); resolution uses
// conditional writes so two racing resolutions can never both land.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanishchat/backend/internal/audit"
	"github.com/vanishchat/backend/internal/domain"
	"github.com/vanishchat/backend/internal/ratelimit"
	"github.com/vanishchat/backend/internal/repo"
)

// DefaultContactPolicy throttles contact-request creation: 8 per 10 minutes
// with 30s spacing, keyed per requester and client address.
var DefaultContactPolicy = ratelimit.Policy{
	Window:      10 * time.Minute,
	MaxRequests: 8,
	Cooldown:    30 * time.Second,
}

// ContactService manages contact requests and contacts.
type ContactService struct {
	DB      *gorm.DB
	Limiter *ratelimit.Limiter
	Audit   audit.Sink

	// CreatePolicy overrides DefaultContactPolicy when its window is set.
	CreatePolicy ratelimit.Policy

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

func (s *ContactService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ContactService) policy() ratelimit.Policy {
	if s.CreatePolicy.Window > 0 {
		return s.CreatePolicy
	}
	return DefaultContactPolicy
}

func (s *ContactService) sink() audit.Sink {
	if s.Audit != nil {
		return s.Audit
	}
	return audit.NopSink{}
}

// Create persists a pending request from requester to receiver. clientAddr is
// the caller's network address, folded into the throttling key so one user
// cannot spray requests from a single host. Participants are assumed
// validated and normalized by the caller; identity rules (distinct users)
// are enforced here.
func (s *ContactService) Create(ctx context.Context, requester, receiver domain.Participant, clientAddr string) (*domain.ContactRequest, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("requester.id", requester.ID)),
	)
	defer span.End()

	if requester.ID == receiver.ID {
		return nil, ErrSelfRequest
	}

	if s.Limiter != nil {
		key := "contact-request:" + requester.ID + ":" + clientAddr
		dec, err := s.Limiter.Admit(ctx, key, s.policy())
		if err != nil {
			return nil, err
		}
		if !dec.Allowed {
			return nil, &RateLimitedError{RetryAfter: dec.RetryAfter}
		}
	}

	cr, err := repo.CreateContactRequest(ctx, s.DB, requester, receiver, s.now())
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicatePending
	}
	if err != nil {
		return nil, err
	}
	return cr, nil
}

// Accept moves a pending request to accepted and derives the contact pair.
// The status transition is a conditional write scoped by the pending status;
// losing the race reports ErrRequestResolved. Contact insertion is
// idempotent: a duplicate pair (both directions accepted, or a retry) is
// success, not an error.
func (s *ContactService) Accept(ctx context.Context, requestID string) (*domain.ContactRequest, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "Accept",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	cr, err := repo.GetContactRequest(ctx, s.DB, requestID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if cr.Status != domain.StatusPending {
		return nil, ErrRequestResolved
	}

	now := s.now()
	applied, err := repo.ResolveContactRequest(ctx, s.DB, requestID, domain.StatusAccepted, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrRequestResolved
	}

	if _, err := repo.CreateContact(ctx, s.DB, cr.Requester, cr.Receiver, now); err != nil {
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
	} else {
		contactsCreated.Inc()
	}

	cr.Status = domain.StatusAccepted
	cr.UpdatedAt = now
	return cr, nil
}

// Reject moves a pending request to rejected and records an audit event
// naming the receiver as actor and both parties in the metadata.
func (s *ContactService) Reject(ctx context.Context, requestID string) (*domain.ContactRequest, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "Reject",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	cr, err := repo.GetContactRequest(ctx, s.DB, requestID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if cr.Status != domain.StatusPending {
		return nil, ErrRequestResolved
	}

	now := s.now()
	applied, err := repo.ResolveContactRequest(ctx, s.DB, requestID, domain.StatusRejected, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrRequestResolved
	}

	s.sink().Record(ctx, audit.ActionContactRequestRejected, cr.Receiver.ID, requestID, map[string]string{
		"requester_id": cr.Requester.ID,
		"receiver_id":  cr.Receiver.ID,
	})

	cr.Status = domain.StatusRejected
	cr.UpdatedAt = now
	return cr, nil
}

// ListIncoming returns all pending requests addressed to receiverID, newest
// first.
func (s *ContactService) ListIncoming(ctx context.Context, receiverID string) ([]domain.ContactRequest, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "ListIncoming",
		trace.WithAttributes(attribute.String("receiver.id", receiverID)),
	)
	defer span.End()

	return repo.ListPendingRequests(ctx, s.DB, receiverID)
}

// SearchByPhone finds contacts of ownerID whose counterpart carries the given
// normalized phone, returning the counterpart snapshots (at most limit).
func (s *ContactService) SearchByPhone(ctx context.Context, ownerID, phone string, limit int) ([]domain.Participant, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "SearchByPhone")
	defer span.End()

	contacts, err := repo.SearchContactsByPhone(ctx, s.DB, ownerID, phone, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Participant, 0, len(contacts))
	for _, c := range contacts {
		if c.ParticipantA.Phone == phone {
			out = append(out, c.ParticipantA)
		} else if c.ParticipantB.Phone == phone {
			out = append(out, c.ParticipantB)
		}
	}
	return out, nil
}
