package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/config"
	"webmarcas-backend/internal/middleware"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func testConfig() *config.Config {
	return &config.Config{SupabaseJWTSecret: testSecret, CronSecret: "cron-secret"}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func serve(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()))
	router.GET("/test", okHandler)

	w := serve(router, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()))
	router.GET("/test", okHandler)

	tests := []struct {
		name   string
		header string
	}{
		{"not a jwt", "Bearer invalid-token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"wrong secret", "Bearer " + func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString()}).SignedString([]byte("other"))
			return tok
		}()},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{
			"sub": uuid.NewString(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"subject is not a uuid", "Bearer " + signToken(t, jwt.MapClaims{"sub": "user-123"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	token := signToken(t, jwt.MapClaims{"sub": userID.String(), "role": "authenticated"})

	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()))
	router.GET("/test", func(c *gin.Context) {
		id, ok := middleware.UserID(c)
		assert.True(t, ok)
		assert.Equal(t, userID, id)
		assert.False(t, middleware.IsAdmin(c))
		okHandler(c)
	})

	w := serve(router, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(testConfig()), middleware.RequireAdmin())
	router.GET("/test", okHandler)

	user := signToken(t, jwt.MapClaims{"sub": uuid.NewString(), "role": "authenticated"})
	admin := signToken(t, jwt.MapClaims{
		"sub":          uuid.NewString(),
		"role":         "authenticated",
		"app_metadata": map[string]any{"role": "admin"},
	})

	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer "+user).Code)
	assert.Equal(t, http.StatusOK, serve(router, "Bearer "+admin).Code)
}

func TestCronOrAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CronOrAdmin(testConfig()))
	router.GET("/test", okHandler)

	user := signToken(t, jwt.MapClaims{"sub": uuid.NewString()})
	service := signToken(t, jwt.MapClaims{"sub": uuid.NewString(), "role": "service_role"})

	assert.Equal(t, http.StatusOK, serve(router, "Bearer cron-secret").Code)
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set(middleware.CronSecretHeader, "cron-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, serve(router, "Bearer "+service).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer "+user).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer wrong-secret").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
}

func TestWebhookToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/hook", middleware.WebhookToken("hook-secret"), okHandler)

	send := func(token string) int {
		req, _ := http.NewRequest("POST", "/hook", nil)
		if token != "" {
			req.Header.Set("Authorization", token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("hook-secret"))
	assert.Equal(t, http.StatusOK, send("Bearer hook-secret"))
	assert.Equal(t, http.StatusUnauthorized, send("nope"))
	assert.Equal(t, http.StatusUnauthorized, send(""))
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Recovery(nopLogger()))
	router.GET("/test", func(c *gin.Context) { panic("boom") })

	w := serve(router, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
