// Authentication HTTP handlers.
//
// This file exposes REST endpoints for phone verification:
//   - POST /auth/otp/request   (issue a one-time passcode)
//   - POST /auth/otp/verify    (verify the passcode, mint a session token)
//   - POST /auth/register      (validate and normalize a registration payload)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vanishchat/backend/internal/validate"
)

//
// DTOs
//

// OtpRequestBody is the JSON payload for requesting a passcode.
type OtpRequestBody struct {
	// Phone is the destination number in any common format; it is normalized
	// to +<digits> before use.
	Phone string `json:"phone" example:"+1 (212) 555-0100"`
}

// OtpRequestResponse reports a successfully issued challenge. The code itself
// never appears in responses.
type OtpRequestResponse struct {
	Status    string    `json:"status" example:"sent"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OtpVerifyBody is the JSON payload for verifying a passcode.
type OtpVerifyBody struct {
	Phone string `json:"phone" example:"+12125550100"`
	Code  string `json:"code" example:"123456"`
}

// OtpVerifyResponse carries the session credential minted on success.
type OtpVerifyResponse struct {
	Status    string `json:"status" example:"verified"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in" example:"86400"`
}

// RegisterBody is the JSON payload for validating a registration.
type RegisterBody struct {
	Name  string `json:"name" example:"Ada Lovelace"`
	Phone string `json:"phone" example:"+12125550100"`
	Email string `json:"email,omitempty" example:"ada@example.com"`
}

// RegisterResponse echoes the normalized registration fields.
type RegisterResponse struct {
	Status string `json:"status" example:"ok"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email,omitempty"`
}

//
// Handlers
//

// RequestOtp godoc
// @ID          requestOtp
// @Summary     Request a one-time passcode
// @Description Issues a short-lived verification code for the given phone and dispatches it via SMS.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.OtpRequestBody  true  "Phone payload"
//
// @Success     200  {object}  handlers.OtpRequestResponse
// @Failure     400  {object}  handlers.ValidationErrorResponse  "Invalid phone"
// @Failure     429  {object}  handlers.ErrorResponse            "Rate limited"
// @Router      /auth/otp/request [post]
func (h *Handlers) RequestOtp(c *gin.Context) {
	var req OtpRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	phone, err := validate.Phone("phone", req.Phone)
	if err != nil {
		serviceError(c, err)
		return
	}

	expiresAt, err := h.otpSvc.Request(c.Request.Context(), phone)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, OtpRequestResponse{Status: "sent", ExpiresAt: expiresAt})
}

// VerifyOtp godoc
// @ID          verifyOtp
// @Summary     Verify a one-time passcode
// @Description Checks the submitted code against the live challenge; success consumes the code and returns a session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.OtpVerifyBody  true  "Phone and code"
//
// @Success     200  {object}  handlers.OtpVerifyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid or expired code"
// @Failure     404  {object}  handlers.ErrorResponse  "No active challenge"
// @Failure     429  {object}  handlers.ErrorResponse  "Attempts exhausted"
// @Router      /auth/otp/verify [post]
func (h *Handlers) VerifyOtp(c *gin.Context) {
	var req OtpVerifyBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	phone, err := validate.Phone("phone", req.Phone)
	if err != nil {
		serviceError(c, err)
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		failValidation(c, []validate.FieldError{{Field: "code", Message: "Code is required."}})
		return
	}

	token, expiresIn, err := h.otpSvc.Verify(c.Request.Context(), phone, code)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, OtpVerifyResponse{Status: "verified", Token: token, ExpiresIn: expiresIn})
}

// Register godoc
// @ID          register
// @Summary     Validate a registration payload
// @Description Validates and normalizes name, phone, and optional email, reporting every offending field at once.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterBody  true  "Registration payload"
//
// @Success     200  {object}  handlers.RegisterResponse
// @Failure     400  {object}  handlers.ValidationErrorResponse  "One or more invalid fields"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	var errs []validate.FieldError
	name, err := validate.Name("name", req.Name)
	if err != nil {
		errs = appendFieldErr(errs, err)
	}
	phone, err := validate.Phone("phone", req.Phone)
	if err != nil {
		errs = appendFieldErr(errs, err)
	}
	email := ""
	if strings.TrimSpace(req.Email) != "" {
		email, err = validate.Email("email", req.Email)
		if err != nil {
			errs = appendFieldErr(errs, err)
		}
	}
	if len(errs) > 0 {
		failValidation(c, errs)
		return
	}

	ok(c, http.StatusOK, RegisterResponse{Status: "ok", Name: name, Phone: phone, Email: email})
}

// appendFieldErr unwraps a FieldError from err and appends it; non-field
// errors are folded into a generic entry so nothing is silently dropped.
func appendFieldErr(errs []validate.FieldError, err error) []validate.FieldError {
	if fe, ok := err.(validate.FieldError); ok {
		return append(errs, fe)
	}
	return append(errs, validate.FieldError{Field: "body", Message: err.Error()})
}
