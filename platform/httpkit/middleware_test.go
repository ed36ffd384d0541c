package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwtSecret string

func (s jwtSecret) GetJWTAccessSecret() string { return string(s) }

const testSecret = jwtSecret("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", handlers...)
	return r
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	userID := uuid.New()
	var seen Identity
	r := newTestEngine(AuthRequired(testSecret), func(c *gin.Context) {
		seen = GetIdentity(c)
		c.Status(http.StatusNoContent)
	})

	token := signToken(t, jwt.MapClaims{
		"sub":   userID.String(),
		"type":  "access",
		"roles": []string{"admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, userID, seen.UserID())
	assert.True(t, seen.HasRole(RoleAdmin))
	assert.True(t, CanActFor(seen, uuid.New()))
}

func TestAuthRequiredTokenQueryFallback(t *testing.T) {
	r := newTestEngine(AuthRequired(testSecret), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	token := signToken(t, jwt.MapClaims{"sub": uuid.NewString(), "type": "access"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?token="+token, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthRequiredRejectsRefreshAndMissingTokens(t *testing.T) {
	r := newTestEngine(AuthRequired(testSecret), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	refresh := signToken(t, jwt.MapClaims{"sub": uuid.NewString(), "type": "refresh"})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleForbidsNonAdmins(t *testing.T) {
	r := newTestEngine(func(c *gin.Context) {
		c.Set(ContextUserIDKey, uuid.New())
		c.Set(ContextRolesKey, []string{"provider"})
	}, RequireRole(RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleErrorMapsKinds(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"not found":   {apperr.NotFound("request not found"), http.StatusNotFound},
		"validation":  {apperr.Validation("unknown plan"), http.StatusBadRequest},
		"unavailable": {apperr.Unavailable("cache down", nil), http.StatusServiceUnavailable},
		"untyped":     {assert.AnError, http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newTestEngine(func(c *gin.Context) { HandleError(c, tc.err) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := newTestEngine(RequestID(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}
