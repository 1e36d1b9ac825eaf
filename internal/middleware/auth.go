package middleware

import (
	"crypto/subtle"
	"errors"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/config"
	"webmarcas-backend/internal/models"
)

const (
	UserIDKey = "user_id"
	RoleKey   = "role"
)

const (
	RoleAdmin       = "admin"
	RoleServiceRole = "service_role"
	RoleCron        = "cron"
)

// AuthMiddleware validates a Supabase access token (HS256, signed with the
// project JWT secret) and stores the caller's id and role in the context.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, cfg.SupabaseJWTSecret) {
			c.Next()
		}
	}
}

// authenticate aborts the request and returns false when the token is
// missing or invalid.
func authenticate(c *gin.Context, secret string) bool {
	tokenString, err := bearerToken(c)
	if err != nil {
		abort(c, apperr.Unauthorized("%s", err.Error()))
		return false
	}

	claims, err := parseToken(tokenString, secret)
	if err != nil {
		abort(c, apperr.Unauthorized("%s", err.Error()))
		return false
	}

	sub, _ := claims["sub"].(string)
	if _, err := uuid.Parse(sub); err != nil {
		abort(c, apperr.Unauthorized("missing user id in token"))
		return false
	}

	c.Set(UserIDKey, sub)
	c.Set(RoleKey, roleFromClaims(claims))
	return true
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			abort(c, apperr.Forbidden("admin role required"))
			return
		}
		c.Next()
	}
}

// CronSecretHeader carries the shared cron secret.
const CronSecretHeader = "X-Cron-Secret"

// CronOrAdmin accepts the shared cron secret, in CronSecretHeader or as the
// bearer token, or an admin access token.
func CronOrAdmin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(CronSecretHeader)
		if token == "" {
			token, _ = bearerToken(c)
		}
		if token != "" && cfg.CronSecret != "" && secretEqual(token, cfg.CronSecret) {
			c.Set(RoleKey, RoleCron)
			c.Next()
			return
		}

		if !authenticate(c, cfg.SupabaseJWTSecret) {
			return
		}
		if !IsAdmin(c) {
			abort(c, apperr.Forbidden("admin role or cron secret required"))
			return
		}
		c.Next()
	}
}

// WebhookToken authenticates payment gateway callbacks by a shared token sent
// in the Authorization header, with or without the Bearer prefix. An empty
// configured token rejects everything.
func WebhookToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" || got == "" || !secretEqual(got, token) {
			abort(c, apperr.Unauthorized("invalid webhook token"))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(UserIDKey)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func IsAdmin(c *gin.Context) bool {
	role := c.GetString(RoleKey)
	return role == RoleAdmin || role == RoleServiceRole
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty token")
	}

	// Some clients URL-encode the token.
	if decoded, err := url.QueryUnescape(token); err == nil {
		token = decoded
	}
	return token, nil
}

func parseToken(tokenString, secret string) (jwt.MapClaims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, errors.New("invalid token format")
	}
	if secret == "" {
		return nil, errors.New("token verification is not configured")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.New("token has expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("token signature is invalid")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("token is malformed")
		default:
			return nil, errors.New("invalid token")
		}
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// roleFromClaims prefers the app_metadata role set by administrators over
// the Supabase database role claim.
func roleFromClaims(claims jwt.MapClaims) string {
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			return role
		}
	}
	role, _ := claims["role"].(string)
	return role
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.Status, models.ErrorResponse{Error: err.Code, Message: err.Message})
}
