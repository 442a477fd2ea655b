// Ephemeral message HTTP handlers.
//
// This file exposes REST endpoints for the message lifecycle:
//   - POST   /messages             (send; supports Idempotency-Key replay)
//   - GET    /messages             (list currently visible messages)
//   - POST   /messages/{id}/read   (first read starts the countdown)
//   - DELETE /messages/{id}        (requester-initiated early deletion)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vanishchat/backend/internal/domain"
	"github.com/vanishchat/backend/internal/http/middleware"
)

//
// DTOs
//

// SendMessageBody is the JSON payload for sending a message.
type SendMessageBody struct {
	SenderID   string `json:"sender_id" example:"u-1"`
	ReceiverID string `json:"receiver_id" example:"u-2"`
	Body       string `json:"body" example:"meet at noon"`
}

// MessageListResponse wraps the messages visible to a participant.
type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Handlers
//

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Persists a new unread message. With an Idempotency-Key header, a retry of a completed send returns the original message instead of creating a second one.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body             body    handlers.SendMessageBody  true  "Message payload"
//
// @Success     201  {object}  domain.Message
// @Success     200  {object}  domain.Message  "Idempotent replay"
// @Failure     400  {object}  handlers.ValidationErrorResponse  "Invalid payload"
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	senderID := strings.TrimSpace(req.SenderID)
	receiverID := strings.TrimSpace(req.ReceiverID)

	// Serve a replay before creating anything.
	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.ReplayLookup != nil {
		if m, err := h.ReplayLookup(c.Request.Context(), senderID, receiverID, key, time.Now().UTC()); err == nil && m != nil {
			ok(c, http.StatusOK, m)
			return
		}
	}

	m, err := h.msgSvc.Send(c.Request.Context(), senderID, receiverID, req.Body)
	if err != nil {
		serviceError(c, err)
		return
	}

	// Best effort: a failed record means a retry creates a duplicate message,
	// never a lost one.
	if hasKey && h.ReplayStore != nil {
		if err := h.ReplayStore(c.Request.Context(), senderID, receiverID, key, m.ID, http.StatusCreated); err != nil {
			log.Warn().Err(err).Msg("idempotency record failed")
		}
	}

	ok(c, http.StatusCreated, m)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List visible messages
// @Description Returns the messages currently visible to a participant, newest first. Messages past their deletion instant are excluded.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID       header  string  false "Caller ID (when no bearer token)"
// @Param       participant_id  query   string  false "Participant override (tests/admin)"
//
// @Success     200  {object}  handlers.MessageListResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing participant identity"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	participantID := strings.TrimSpace(c.Query("participant_id"))
	if participantID == "" {
		participantID = userID(c)
	}
	if participantID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "participant identity required")
		return
	}

	items, err := h.msgSvc.ListFor(c.Request.Context(), participantID)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, MessageListResponse{Messages: items})
}

// ReadMessageBody is the JSON payload for marking a message read. ReceiverID
// may be omitted when the caller identity is already established.
type ReadMessageBody struct {
	ReceiverID string `json:"receiver_id" example:"u-2"`
}

// MarkMessageRead godoc
// @ID          markMessageRead
// @Summary     Mark a message read
// @Description Records the first read and fixes the deletion instant (read time + grace). Repeat calls return the original stamps unchanged.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true   "Message ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ReadMessageBody  false  "Receiver identity"
//
// @Success     200  {object}  domain.Message
// @Failure     403  {object}  handlers.ErrorResponse  "Caller is not the receiver"
// @Failure     404  {object}  handlers.ErrorResponse  "Message not found"
// @Router      /messages/{id}/read [post]
func (h *Handlers) MarkMessageRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	var req ReadMessageBody
	_ = c.ShouldBindJSON(&req) // body optional
	receiverID := strings.TrimSpace(req.ReceiverID)
	if receiverID == "" {
		receiverID = userID(c)
	}
	if receiverID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiver identity required")
		return
	}

	m, err := h.msgSvc.MarkRead(c.Request.Context(), id, receiverID)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete a message early
// @Description Stamps the deletion instant with now, regardless of read state. Only the sender or receiver may delete.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller ID (when no bearer token)"
// @Param       id         path    string  true  "Message ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Message
// @Failure     403  {object}  handlers.ErrorResponse  "Caller is not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Message not found"
// @Failure     410  {object}  handlers.ErrorResponse  "Already deleted"
// @Router      /messages/{id} [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}
	requesterID := userID(c)
	if requesterID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "requester identity required")
		return
	}

	m, err := h.msgSvc.Delete(c.Request.Context(), id, requesterID)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}
