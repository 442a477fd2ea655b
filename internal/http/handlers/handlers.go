// Handler wiring and shared error translation.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Service sentinel errors are
// mapped to status codes and stable error codes in exactly one place
// (serviceError) so every endpoint reports the same taxonomy.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vanishchat/backend/internal/domain"
	"github.com/vanishchat/backend/internal/http/middleware"
	"github.com/vanishchat/backend/internal/services"
	"github.com/vanishchat/backend/internal/validate"
)

//
// Service contracts (context-aware)
//

// OtpService defines the passcode lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type OtpService interface {
	// Request issues (or reissues) a challenge for phone and returns its expiry.
	Request(ctx context.Context, phone string) (time.Time, error)
	// Verify checks code for phone; on success it returns a session token and
	// its validity in seconds.
	Verify(ctx context.Context, phone, code string) (string, int64, error)
}

// ContactService defines contact-request ledger operations.
type ContactService interface {
	// Create records a pending request; clientAddr feeds the throttling key.
	Create(ctx context.Context, requester, receiver domain.Participant, clientAddr string) (*domain.ContactRequest, error)
	// Accept resolves a pending request and derives the contact pair.
	Accept(ctx context.Context, requestID string) (*domain.ContactRequest, error)
	// Reject resolves a pending request without deriving a contact.
	Reject(ctx context.Context, requestID string) (*domain.ContactRequest, error)
	// ListIncoming returns pending requests addressed to receiverID.
	ListIncoming(ctx context.Context, receiverID string) ([]domain.ContactRequest, error)
	// SearchByPhone finds the owner's contacts by counterpart phone.
	SearchByPhone(ctx context.Context, ownerID, phone string, limit int) ([]domain.Participant, error)
}

// MessageService defines ephemeral message operations.
type MessageService interface {
	// Send persists a new unread message.
	Send(ctx context.Context, senderID, receiverID, body string) (*domain.Message, error)
	// ListFor returns messages currently visible to a participant.
	ListFor(ctx context.Context, participantID string) ([]domain.Message, error)
	// MarkRead records the first read and starts the disappearance countdown.
	MarkRead(ctx context.Context, messageID, receiverID string) (*domain.Message, error)
	// Delete performs a requester-initiated early deletion.
	Delete(ctx context.Context, messageID, requesterID string) (*domain.Message, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for authentication, contacts, and messages.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	otpSvc     OtpService
	contactSvc ContactService
	msgSvc     MessageService

	// ReplayLookup resolves a previously completed message send for an
	// idempotency key; nil disables replay serving.
	ReplayLookup ReplayLookup

	// ReplayStore records a completed send under its idempotency key; nil
	// disables recording.
	ReplayStore ReplayStore
}

// ReplayLookup returns the message created by a prior send with the same
// (senderID, receiverID, key), or nil when no valid record exists.
type ReplayLookup func(ctx context.Context, senderID, receiverID, key string, now time.Time) (*domain.Message, error)

// ReplayStore persists the outcome of a completed send for later replay.
type ReplayStore func(ctx context.Context, senderID, receiverID, key, messageID string, status int) error

// New constructs and returns a Handlers instance bound to the given services.
func New(otpSvc OtpService, contactSvc ContactService, msgSvc MessageService) *Handlers {
	return &Handlers{otpSvc: otpSvc, contactSvc: contactSvc, msgSvc: msgSvc}
}

// userID extracts the caller identity from the Gin context (set by the
// identity middleware) with an "X-User-ID" header fallback for tests.
func userID(c *gin.Context) string {
	if s := middleware.UserIDFromCtx(c); s != "" {
		return s
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// Error translation
//

// ValidationErrorResponse is the error envelope for field validation
// failures; Errors lists each offending field.
type ValidationErrorResponse struct {
	RequestID string                `json:"request_id,omitempty"`
	Code      string                `json:"code"`
	Errors    []validate.FieldError `json:"errors"`
}

// failValidation writes a 400 with the per-field error list.
func failValidation(c *gin.Context, errs []validate.FieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ValidationErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      ErrCodeValidation,
		Errors:    errs,
	})
}

// serviceError translates a service-layer error into an HTTP response. It is
// the single mapping between the service error taxonomy and transport status
// codes.
func serviceError(c *gin.Context, err error) {
	var fe validate.FieldError
	if errors.As(err, &fe) {
		failValidation(c, []validate.FieldError{fe})
		return
	}

	var rle *services.RateLimitedError
	if errors.As(err, &rle) {
		secs := int(rle.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "too many requests, retry later")
		return
	}

	switch {
	case errors.Is(err, services.ErrOtpNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no active code for this phone")
	case errors.Is(err, services.ErrOtpExpired):
		fail(c, http.StatusBadRequest, ErrCodeExpired, "code expired, request a new one")
	case errors.Is(err, services.ErrOtpAttemptsExhausted):
		fail(c, http.StatusTooManyRequests, ErrCodeAttemptsExhausted, "too many failed attempts, request a new code")
	case errors.Is(err, services.ErrOtpInvalidCode):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCode, "incorrect code")
	case errors.Is(err, services.ErrRequestNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "contact request not found")
	case errors.Is(err, services.ErrRequestResolved):
		fail(c, http.StatusConflict, ErrCodeConflict, "contact request already resolved")
	case errors.Is(err, services.ErrSelfRequest):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot send a contact request to yourself")
	case errors.Is(err, services.ErrDuplicatePending):
		fail(c, http.StatusConflict, ErrCodeConflict, "a pending request for this pair already exists")
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	case errors.Is(err, services.ErrReceiverMismatch):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "only the receiver can mark a message read")
	case errors.Is(err, services.ErrNotParticipant):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "only a participant can delete a message")
	case errors.Is(err, services.ErrMessageGone):
		fail(c, http.StatusGone, ErrCodeGone, "message already deleted")
	case errors.Is(err, services.ErrBodyTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message body too long")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
