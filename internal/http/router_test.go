package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vanishchat/backend/internal/config"
	"github.com/vanishchat/backend/internal/http/middleware"
	"github.com/vanishchat/backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		AppSecret:   "router-test-secret",
		SessionTTL:  time.Hour,
		OTP: config.OTPConfig{
			CodeTTL:         5 * time.Minute,
			CodeDigits:      6,
			RequestWindow:   10 * time.Minute,
			MaxPerWindow:    5,
			RequestCooldown: 0, // no spacing in tests
			MaxAttempts:     5,
			DevMode:         true,
			DevCode:         "123456",
		},
		Contact: config.ContactConfig{
			RequestWindow: 10 * time.Minute,
			MaxPerWindow:  100,
		},
		MessageGrace:   30 * time.Second,
		MaxBodyRunes:   4000,
		RateRPS:        1000,
		RateBurst:      1000,
		IdempotencyTTL: time.Hour,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, testConfig())
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t)

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	RegisterRoutes(r, newTestDB(t), cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestOtpFlow_EndToEnd_DevMode(t *testing.T) {
	r, _ := newTestRouter(t)

	// Request a code.
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/otp/request", gin.H{"phone": "+1 (212) 555-0100"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("otp request = %d body=%s", w.Code, w.Body.String())
	}
	var issued struct {
		Status    string    `json:"status"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if issued.Status != "sent" || issued.ExpiresAt.IsZero() {
		t.Fatalf("unexpected issue response: %+v", issued)
	}

	// Wrong code → 400 invalid_code.
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/otp/verify", gin.H{"phone": "+12125550100", "code": "000000"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong code expected 400, got %d", w.Code)
	}

	// Dev code verifies and mints a token.
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/otp/verify", gin.H{"phone": "+12125550100", "code": "123456"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify = %d body=%s", w.Code, w.Body.String())
	}
	var verified struct {
		Status    string `json:"status"`
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &verified); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if verified.Status != "verified" || verified.Token == "" || verified.ExpiresIn != 3600 {
		t.Fatalf("unexpected verify response: %+v", verified)
	}

	// Token works as bearer identity on a protected-ish endpoint.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer "+verified.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list with bearer = %d body=%s", rec.Code, rec.Body.String())
	}

	// The code is single use: a retry of the same verify now 404s.
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/otp/verify", gin.H{"phone": "+12125550100", "code": "123456"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second verify expected 404, got %d", w.Code)
	}
}

func TestContactFlow_EndToEnd(t *testing.T) {
	r, _ := newTestRouter(t)

	body := gin.H{
		"requester": gin.H{"id": "u-1", "name": "Ada", "phone": "+12125550100"},
		"receiver":  gin.H{"id": "u-2", "name": "Grace", "phone": "+12125550101"},
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/contacts/requests", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create request = %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != "pending" || created.ID == "" {
		t.Fatalf("unexpected created request: %+v", created)
	}

	// Duplicate pending for the same pair → 409.
	w = doJSON(t, r, http.MethodPost, "/api/v1/contacts/requests", body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate pending expected 409, got %d", w.Code)
	}

	// Receiver sees it in their incoming list.
	w = doJSON(t, r, http.MethodGet, "/api/v1/contacts/requests?receiver_id=u-2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list incoming = %d", w.Code)
	}
	var listed struct {
		Requests []json.RawMessage `json:"requests"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Requests) != 1 {
		t.Fatalf("expected 1 incoming request, got %d", len(listed.Requests))
	}

	// Accept it; a second resolution conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/v1/contacts/requests/"+created.ID+"/accept", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept = %d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/contacts/requests/"+created.ID+"/reject", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("resolve after accept expected 409, got %d", w.Code)
	}

	// The derived contact is searchable by counterpart phone.
	w = doJSON(t, r, http.MethodGet, "/api/v1/contacts/search?owner_id=u-1&phone=%2B12125550101", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d body=%s", w.Code, w.Body.String())
	}
	var found struct {
		Contacts []struct {
			ID string `json:"id"`
		} `json:"contacts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(found.Contacts) != 1 || found.Contacts[0].ID != "u-2" {
		t.Fatalf("unexpected search result: %+v", found)
	}
}

func TestMessageFlow_IdempotentSend(t *testing.T) {
	r, _ := newTestRouter(t)

	body := gin.H{"sender_id": "u-1", "receiver_id": "u-2", "body": "hello"}
	headers := map[string]string{
		"X-User-ID":                     "u-1",
		middleware.HeaderIdempotencyKey: "send-1",
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/messages", body, headers)
	if w.Code != http.StatusCreated {
		t.Fatalf("send = %d body=%s", w.Code, w.Body.String())
	}
	var first struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Retry with the same key replays the original message.
	w = doJSON(t, r, http.MethodPost, "/api/v1/messages", body, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("replay expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var second struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned different message: %q vs %q", second.ID, first.ID)
	}

	// Receiver reads it; stamps appear.
	w = doJSON(t, r, http.MethodPost, "/api/v1/messages/"+first.ID+"/read", gin.H{"receiver_id": "u-2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read = %d body=%s", w.Code, w.Body.String())
	}
	var read struct {
		ReadAt     *time.Time `json:"read_at"`
		DeletionAt *time.Time `json:"deletion_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &read); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if read.ReadAt == nil || read.DeletionAt == nil {
		t.Fatalf("expected read/deletion stamps, got %+v", read)
	}
	if got := read.DeletionAt.Sub(*read.ReadAt); got != 30*time.Second {
		t.Fatalf("deletion - read = %v, want 30s", got)
	}

	// Sender deletes early; a second delete reports gone.
	w = doJSON(t, r, http.MethodDelete, "/api/v1/messages/"+first.ID, nil, map[string]string{"X-User-ID": "u-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodDelete, "/api/v1/messages/"+first.ID, nil, map[string]string{"X-User-ID": "u-1"})
	if w.Code != http.StatusGone {
		t.Fatalf("second delete expected 410, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses identity + idempotency + ratelimit +
// otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	RegisterRoutes(r, newTestDB(t), cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// simulate https so HSTS could be eligible if middleware checks scheme
	req.URL.Scheme = "https"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestIdentity_InvalidBearerRejected(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad bearer, got %d", w.Code)
	}
}
