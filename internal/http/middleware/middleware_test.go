package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethioshop.com/app/internal/auth"
	"ethioshop.com/app/internal/logging"
	"ethioshop.com/app/internal/shared/apperr"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(signer *auth.Signer) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(logging.Discard()), Recovery(logging.Discard()), Authenticate(signer))
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRole(t *testing.T) {
	signer := auth.NewSigner("secret", "")
	r := newEngine(signer)
	r.GET("/admin", RequireRole(auth.RoleAdmin, auth.RoleVendor), func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.String(http.StatusOK, p.UserID)
	})

	customer, err := signer.Issue("u-1", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)
	vendor, err := signer.Issue("v-1", auth.RoleVendor, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/admin", "garbage").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", customer).Code)

	w := do(r, http.MethodGet, "/admin", vendor)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v-1", w.Body.String())
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	r := newEngine(auth.NewSigner("secret", ""))
	r.GET("/invalid", func(c *gin.Context) {
		Fail(c, apperr.InvalidErr("Validation error.", map[string]string{"email": "This field is required."}))
	})
	r.GET("/boom", func(c *gin.Context) {
		Fail(c, errors.New("db exploded"))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("nil map")
	})

	w := do(r, http.MethodGet, "/invalid", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error     string            `json:"error"`
		RequestID string            `json:"request_id"`
		Fields    map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation error.", body.Error)
	assert.Equal(t, w.Header().Get(HeaderRequestID), body.RequestID)
	assert.Equal(t, "This field is required.", body.Fields["email"])

	w = do(r, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db exploded")

	w = do(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	r := newEngine(auth.NewSigner("secret", ""))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Body.String())

	w = do(r, http.MethodGet, "/", "")
	assert.Len(t, w.Body.String(), 32)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))

	now = now.Add(10 * time.Minute)
	rl.Sweep()
	assert.Zero(t, rl.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	r := newEngine(auth.NewSigner("secret", ""))
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/", "").Code)
	w := do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var nilLimiter *RateLimiter
	r2 := newEngine(auth.NewSigner("secret", ""))
	r2.GET("/", nilLimiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(r2, http.MethodGet, "/", "").Code)
	}
}
