// Contact-request HTTP handlers.
//
// This file exposes REST endpoints for the contact-request ledger:
//   - POST /contacts/requests               (create a pending request)
//   - GET  /contacts/requests               (list incoming pending requests)
//   - POST /contacts/requests/{id}/accept   (resolve: accept)
//   - POST /contacts/requests/{id}/reject   (resolve: reject)
//   - GET  /contacts/search                 (find contacts by phone)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vanishchat/backend/internal/domain"
	"github.com/vanishchat/backend/internal/utils"
	"github.com/vanishchat/backend/internal/validate"
)

//
// DTOs
//

// CreateContactRequestBody is the JSON payload for creating a contact request.
// Both participants travel as full snapshots so the receiver can render the
// requester without a second lookup.
type CreateContactRequestBody struct {
	Requester validate.ParticipantInput `json:"requester"`
	Receiver  validate.ParticipantInput `json:"receiver"`
}

// ContactRequestListResponse wraps the incoming pending requests.
type ContactRequestListResponse struct {
	Requests []domain.ContactRequest `json:"requests"`
}

// ContactSearchResponse wraps the contacts matched by a phone search.
type ContactSearchResponse struct {
	Contacts []domain.Participant `json:"contacts"`
}

//
// Handlers
//

// CreateContactRequest godoc
// @ID          createContactRequest
// @Summary     Send a contact request
// @Description Records a pending request from requester to receiver. At most one pending request may exist per ordered pair.
// @Tags        Contacts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateContactRequestBody  true  "Requester and receiver snapshots"
//
// @Success     201  {object}  domain.ContactRequest
// @Failure     400  {object}  handlers.ValidationErrorResponse  "Invalid participants"
// @Failure     409  {object}  handlers.ErrorResponse            "Duplicate pending request"
// @Failure     429  {object}  handlers.ErrorResponse            "Rate limited"
// @Router      /contacts/requests [post]
func (h *Handlers) CreateContactRequest(c *gin.Context) {
	var req CreateContactRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	errs := validate.Participant(req.Requester, "requester")
	errs = append(errs, validate.Participant(req.Receiver, "receiver")...)
	if len(errs) > 0 {
		failValidation(c, errs)
		return
	}

	requester := validate.NormalizeParticipant(req.Requester)
	receiver := validate.NormalizeParticipant(req.Receiver)

	cr, err := h.contactSvc.Create(c.Request.Context(), requester, receiver, c.ClientIP())
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusCreated, cr)
}

// ListContactRequests godoc
// @ID          listContactRequests
// @Summary     List incoming pending requests
// @Description Returns pending contact requests addressed to the caller, newest first.
// @Tags        Contacts
// @Produce     json
//
// @Param       X-User-ID    header  string  false "Caller ID (when no bearer token)"
// @Param       receiver_id  query   string  false "Receiver override (tests/admin)"
//
// @Success     200  {object}  handlers.ContactRequestListResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing receiver identity"
// @Router      /contacts/requests [get]
func (h *Handlers) ListContactRequests(c *gin.Context) {
	receiverID := strings.TrimSpace(c.Query("receiver_id"))
	if receiverID == "" {
		receiverID = userID(c)
	}
	if receiverID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiver identity required")
		return
	}

	items, err := h.contactSvc.ListIncoming(c.Request.Context(), receiverID)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, ContactRequestListResponse{Requests: items})
}

// AcceptContactRequest godoc
// @ID          acceptContactRequest
// @Summary     Accept a contact request
// @Description Moves a pending request to accepted and derives the contact pair. Resolution is final.
// @Tags        Contacts
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.ContactRequest
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already resolved"
// @Router      /contacts/requests/{id}/accept [post]
func (h *Handlers) AcceptContactRequest(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}

	cr, err := h.contactSvc.Accept(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, cr)
}

// RejectContactRequest godoc
// @ID          rejectContactRequest
// @Summary     Reject a contact request
// @Description Moves a pending request to rejected. Resolution is final.
// @Tags        Contacts
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.ContactRequest
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already resolved"
// @Router      /contacts/requests/{id}/reject [post]
func (h *Handlers) RejectContactRequest(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}

	cr, err := h.contactSvc.Reject(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, cr)
}

// SearchContacts godoc
// @ID          searchContacts
// @Summary     Search contacts by phone
// @Description Finds the caller's contacts whose phone matches the given number.
// @Tags        Contacts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Caller ID (when no bearer token)"
// @Param       phone      query   string  true  "Phone to search for"
// @Param       limit      query   int     false "Max results"  default(20)
//
// @Success     200  {object}  handlers.ContactSearchResponse
// @Failure     400  {object}  handlers.ValidationErrorResponse  "Invalid phone"
// @Router      /contacts/search [get]
func (h *Handlers) SearchContacts(c *gin.Context) {
	ownerID := strings.TrimSpace(c.Query("owner_id"))
	if ownerID == "" {
		ownerID = userID(c)
	}
	if ownerID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "owner identity required")
		return
	}
	phone, err := validate.Phone("phone", c.Query("phone"))
	if err != nil {
		serviceError(c, err)
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 20)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	matches, err := h.contactSvc.SearchByPhone(c.Request.Context(), ownerID, phone, limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, ContactSearchResponse{Contacts: matches})
}
