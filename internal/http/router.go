// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/vanishchat/backend/internal/audit"
	"github.com/vanishchat/backend/internal/auth"
	"github.com/vanishchat/backend/internal/config"
	"github.com/vanishchat/backend/internal/domain"
	"github.com/vanishchat/backend/internal/http/handlers"
	"github.com/vanishchat/backend/internal/http/middleware"
	"github.com/vanishchat/backend/internal/ratelimit"
	"github.com/vanishchat/backend/internal/repo"
	"github.com/vanishchat/backend/internal/services"
	"github.com/vanishchat/backend/internal/sms"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Identity resolution (bearer token or dev header)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			middleware.HeaderUserID, // caller identity is PII here
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Resolve caller identity before anything keyed by it
	issuer := auth.NewJWTIssuer(cfg.AppSecret, cfg.OTEL.ServiceName)
	r.Use(middleware.Identity(func(token string) (string, error) {
		return issuer.Validate(token)
	}))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, senderID, key string, now time.Time) (bool, error) {
			return repo.HasIdempotencyForSender(ctx, db, senderID, key, now)
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/config
	var transport sms.Transport = sms.Noop{}
	if tw := sms.NewTwilio(sms.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
	}, nil); tw.Configured() {
		transport = tw
	}

	sink := &audit.StoreSink{DB: db}

	otpSvc := &services.OtpService{
		DB:        db,
		Transport: transport,
		Tokens:    issuer,
		Secret:    []byte(cfg.AppSecret),
		CodeTTL:   cfg.OTP.CodeTTL,
		RequestPolicy: ratelimit.Policy{
			Window:      cfg.OTP.RequestWindow,
			MaxRequests: cfg.OTP.MaxPerWindow,
			Cooldown:    cfg.OTP.RequestCooldown,
		},
		MaxAttempts: cfg.OTP.MaxAttempts,
		CodeDigits:  cfg.OTP.CodeDigits,
		SessionTTL:  cfg.SessionTTL,
		DevMode:     cfg.OTP.DevMode,
		DevCode:     cfg.OTP.DevCode,
	}

	contactSvc := &services.ContactService{
		DB:      db,
		Limiter: ratelimit.NewLimiter(db),
		Audit:   sink,
		CreatePolicy: ratelimit.Policy{
			Window:      cfg.Contact.RequestWindow,
			MaxRequests: cfg.Contact.MaxPerWindow,
			Cooldown:    cfg.Contact.RequestCooldown,
		},
	}

	msgSvc := &services.MessageService{
		DB:           db,
		Audit:        sink,
		Grace:        cfg.MessageGrace,
		MaxBodyRunes: cfg.MaxBodyRunes,
	}

	h := handlers.New(otpSvc, contactSvc, msgSvc)
	h.ReplayLookup = func(ctx context.Context, senderID, receiverID, key string, now time.Time) (*domain.Message, error) {
		rec, err := repo.GetIdempotency(ctx, db, senderID, receiverID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return repo.GetMessage(ctx, db, rec.MessageID)
	}
	h.ReplayStore = func(ctx context.Context, senderID, receiverID, key, messageID string, status int) error {
		_, err := repo.CreateIdempotency(ctx, db, senderID, receiverID, key, messageID, status, cfg.IdempotencyTTL)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil
		}
		return err
	}

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Auth
		api.POST("/auth/otp/request", h.RequestOtp)
		api.POST("/auth/otp/verify", h.VerifyOtp)
		api.POST("/auth/register", h.Register)

		// Contacts
		api.POST("/contacts/requests", h.CreateContactRequest)
		api.GET("/contacts/requests", h.ListContactRequests)
		api.POST("/contacts/requests/:id/accept", h.AcceptContactRequest)
		api.POST("/contacts/requests/:id/reject", h.RejectContactRequest)
		api.GET("/contacts/search", h.SearchContacts)

		// Messages
		api.POST("/messages", h.SendMessage)
		api.GET("/messages", h.ListMessages)
		api.POST("/messages/:id/read", h.MarkMessageRead)
		api.DELETE("/messages/:id", h.DeleteMessage)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
