package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestTenantMiddleware(t *testing.T) {
	router := setupTestRouter()
	router.Use(TenantMiddleware())
	router.GET("/t", func(c *gin.Context) {
		c.String(http.StatusOK, GetTenantID(c))
	})

	t.Run("vendor header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/t", nil)
		req.Header.Set("X-Vendor-ID", "vendor-1")
		req.Header.Set("X-Tenant-ID", "tenant-1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "vendor-1", w.Body.String())
	})

	t.Run("tenant header fallback", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/t", nil)
		req.Header.Set("X-Tenant-ID", "tenant-1")
		router.ServeHTTP(w, req)

		assert.Equal(t, "tenant-1", w.Body.String())
	})

	t.Run("missing tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/t", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TENANT_REQUIRED")
	})
}

func TestDevelopmentAuthMiddleware(t *testing.T) {
	router := setupTestRouter()
	router.Use(DevelopmentAuthMiddleware())
	router.GET("/u", func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/u", nil)
	req.Header.Set("X-User-ID", "user-7")
	router.ServeHTTP(w, req)
	assert.Equal(t, "user-7", w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/u", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", w.Body.String())
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	router := setupTestRouter()
	router.Use(AuthMiddleware("secret"), TenantMiddleware())
	router.GET("/a", func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c)+"@"+GetTenantID(c))
	})

	serve := func(authHeader string, headers map[string]string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/a", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("valid token sets user and tenant", func(t *testing.T) {
		token := signToken(t, "secret", Claims{
			UserID:   "user-1",
			TenantID: "tenant-jwt",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		w := serve("Bearer "+token, map[string]string{"X-Tenant-ID": "tenant-header"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1@tenant-jwt", w.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		w := serve("", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_TOKEN")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := serve("Basic abc", nil)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN_FORMAT")
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other", Claims{UserID: "user-1"})
		w := serve("Bearer "+token, nil)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, "secret", Claims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
		w := serve("Bearer "+token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
