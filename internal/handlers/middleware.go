package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
)

const (
	ctxUserID    = "user_id"
	ctxRole      = "role"
	ctxRequestID = "request_id"

	// RoleAdmin grants access to the discount administration routes.
	RoleAdmin = "admin"
)

// Claims are the JWT claims the API understands. Subject carries the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RequestID propagates X-Request-Id, generating one when the caller sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Authenticate requires a valid HS256 token from the Authorization header or
// the token cookie.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			respondError(c, apperr.Unauthenticated("Authentication required"))
			return
		}
		claims, err := parseToken(raw, secret)
		if err != nil {
			logger.Debug().Err(err).Str("request_id", requestID(c)).Msg("Rejected token")
			respondError(c, apperr.Unauthenticated("Invalid or expired token"))
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != RoleAdmin {
			respondError(c, apperr.PermissionDenied("Admin access required"))
			return
		}
		c.Next()
	}
}

func parseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return cookie
	}
	return ""
}

func userID(c *gin.Context) string { return c.GetString(ctxUserID) }

func requestID(c *gin.Context) string { return c.GetString(ctxRequestID) }
