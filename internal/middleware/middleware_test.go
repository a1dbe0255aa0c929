package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/ratelimit"
	"github.com/mybeatfi/securegate/internal/security"
	"github.com/mybeatfi/securegate/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "middleware-test-secret"

func issue(t *testing.T, auth *service.AuthService, user *models.User) string {
	t.Helper()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	token, err := auth.IssueToken(user)
	require.NoError(t, err)
	return token
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(KeyUserID)})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	auth := service.NewAuthService(nil, testSecret, 1)
	r := gin.New()
	r.GET("/me", RequireAuth(auth), ok)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + issue(t, auth, &models.User{Role: models.RoleUser}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, serve(r, req).Code)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	auth := service.NewAuthService(nil, testSecret, 1)
	user := &models.User{ID: uuid.New()}
	r := gin.New()
	r.GET("/", OptionalAuth(auth), ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, auth, user))
	w := serve(r, req)
	assert.Contains(t, w.Body.String(), user.ID.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRequireRole(t *testing.T) {
	auth := service.NewAuthService(nil, testSecret, 1)
	r := gin.New()
	r.GET("/admin", RequireAuth(auth), RequireRole(models.RoleAdmin), ok)

	for role, want := range map[string]int{models.RoleAdmin: http.StatusOK, models.RoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, auth, &models.User{Role: role}))
		assert.Equal(t, want, serve(r, req).Code, role)
	}
}

func TestRequireVerified(t *testing.T) {
	auth := service.NewAuthService(nil, testSecret, 1)
	accepted := time.Now()

	r := gin.New()
	r.GET("/sell", RequireAuth(auth), RequireVerified(), ok)
	r.GET("/unauthenticated", RequireVerified(), ok)

	tests := []struct {
		name     string
		user     models.User
		want     int
		wantCode string
	}{
		{
			name:     "terms not accepted",
			user:     models.User{AccountType: models.AccountClient, VerificationStatus: models.VerificationVerified},
			want:     http.StatusForbidden,
			wantCode: "terms_not_accepted",
		},
		{
			name:     "producer pending",
			user:     models.User{AccountType: models.AccountProducer, VerificationStatus: models.VerificationPending, TermsAcceptedAt: &accepted},
			want:     http.StatusForbidden,
			wantCode: "pending_verification",
		},
		{
			name: "verified producer",
			user: models.User{AccountType: models.AccountProducer, VerificationStatus: models.VerificationVerified, TermsAcceptedAt: &accepted},
			want: http.StatusOK,
		},
		{
			name: "client",
			user: models.User{AccountType: models.AccountClient, VerificationStatus: models.VerificationVerified, TermsAcceptedAt: &accepted},
			want: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sell", nil)
			req.Header.Set("Authorization", "Bearer "+issue(t, auth, &tt.user))

			w := serve(r, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
			}
		})
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/unauthenticated", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func newRegistry() *security.Registry {
	limiters := security.DefaultLimiters()
	return security.NewRegistry(func(id string) *security.Gate {
		return security.New(security.DefaultConfig(), limiters, security.WithSessionID(id))
	}, time.Hour)
}

func TestSessionAndBlocked(t *testing.T) {
	registry := newRegistry()
	r := gin.New()
	r.Use(Session(registry))
	r.GET("/guarded", Blocked(), ok)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := w.Header().Get(SessionHeader)
	_, err := uuid.Parse(sessionID)
	require.NoError(t, err, "a session id is minted")

	gate, found := registry.Lookup(sessionID)
	require.True(t, found)
	for i := 0; i < 5; i++ {
		gate.LogViolation("field too long")
	}

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(SessionHeader, sessionID)
	w = serve(r, req)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"blocked"`)
	assert.Equal(t, sessionID, w.Header().Get(SessionHeader))

	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(SessionHeader, "not-a-uuid")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code, "an invalid id starts a new session")
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(SessionHeader))
}

func TestThrottleKey_AnonymousBucketRollsOver(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := gin.New()
	r.Use(Session(newRegistry(), WithSessionClock(func() time.Time { return now })))
	r.GET("/key", func(c *gin.Context) {
		c.String(http.StatusOK, ThrottleKey(c))
	})

	key := func() string {
		req := httptest.NewRequest(http.MethodGet, "/key", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.RemoteAddr = "203.0.113.7:4242"
		return serve(r, req).Body.String()
	}

	first := key()
	assert.Equal(t, "anon:203.0.113.7:Mozilla/5.0_5680344", first)

	now = now.Add(4*time.Minute + 59*time.Second)
	assert.Equal(t, first, key(), "same bucket")

	now = now.Add(time.Second)
	assert.NotEqual(t, first, key(), "next bucket")
}

func TestRateLimit(t *testing.T) {
	registry := newRegistry()
	limiter := ratelimit.NewMemory(2, time.Hour)
	r := gin.New()
	r.Use(Session(registry))
	r.POST("/upload", RateLimit(limiter, ratelimit.ClassUpload, func(*gin.Context) string { return "k" }, zap.NewNop()), ok)

	sessionID := uuid.NewString()
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.Header.Set(SessionHeader, sessionID)
		return serve(r, req)
	}

	w := send()
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, send().Code)

	w = send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded for upload requests")

	gate, _ := registry.Lookup(sessionID)
	assert.Len(t, gate.Violations(), 1)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, RetryAfterSeconds(-time.Second))
	assert.Equal(t, 1, RetryAfterSeconds(time.Millisecond))
	assert.Equal(t, 60, RetryAfterSeconds(time.Minute))
}
