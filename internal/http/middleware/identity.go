// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity and stashes it in the Gin context
// under "userID" for downstream consumers (rate limiting keys, idempotency
// scoping, handlers).
//
// Resolution order:
//  1. Authorization: Bearer <token>, verified by the injected TokenValidator.
//  2. X-User-ID header (development and test convenience).
//
// Verification failures on a presented token reject the request; an absent
// token is not an error, endpoints that require identity enforce it themselves.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID is the development identity header honored when no bearer
// token is presented.
const HeaderUserID = "X-User-ID"

const ctxKeyUserID = "userID"

// TokenValidator verifies a bearer token and returns its subject.
// Implementations typically wrap a JWT verifier.
type TokenValidator func(token string) (subject string, err error)

// UserIDFromCtx returns the identity stored by Identity, or "" when the
// request carried none.
func UserIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Identity returns a middleware that resolves and stashes the caller identity.
// A malformed or unverifiable bearer token aborts with 401; everything else
// proceeds, possibly anonymously.
func Identity(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authz := c.GetHeader("Authorization"); authz != "" && validate != nil {
			token, found := strings.CutPrefix(authz, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code":    "unauthorized",
					"message": "malformed Authorization header",
				})
				return
			}
			sub, err := validate(strings.TrimSpace(token))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code":    "unauthorized",
					"message": "invalid or expired token",
				})
				return
			}
			c.Set(ctxKeyUserID, sub)
			c.Next()
			return
		}

		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			c.Set(ctxKeyUserID, uid)
		}
		c.Next()
	}
}
