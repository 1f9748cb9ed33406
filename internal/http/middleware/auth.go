// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements AdminAuth, the gate in front of the admin API. A
// request must carry "Authorization: Bearer <jwt>" signed with HS256 and the
// shared ADMIN_JWT_SECRET. The token subject is the admin's Telegram id; it
// is resolved through the same guards the bot uses, so blocking a user or
// revoking is_admin takes effect on the next request without rotating keys.
//
// On success the context carries:
//   - "userID":     the Telegram id as a decimal string (rate limiting, logs,
//     idempotency scoping)
//   - "telegramID": the Telegram id as int64
//   - "adminUser":  the resolved *domain.User
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

const (
	ctxKeyUserID     = "userID"
	ctxKeyTelegramID = "telegramID"
	ctxKeyAdminUser  = "adminUser"
)

// ErrInvalidToken is returned by ParseAdminToken for any token that cannot
// be trusted: bad signature, wrong algorithm, expired, or a non-numeric
// subject.
var ErrInvalidToken = errors.New("invalid token")

// AdminGuard resolves a Telegram id to a guard Outcome. The router builds it
// from Guards.RequireKnownUser followed by services.RequireAdmin.
type AdminGuard func(ctx context.Context, telegramID int64) (services.Outcome, error)

// ParseAdminToken verifies raw and returns the Telegram id in its subject.
// Tokens must be HS256 and carry an expiry.
func ParseAdminToken(secret []byte, raw string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// IssueAdminToken signs a token for telegramID valid for ttl.
func IssueAdminToken(secret []byte, telegramID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(telegramID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AdminAuth authenticates the bearer token and authorizes the subject with
// guard. An empty secret rejects every request so a missing
// ADMIN_JWT_SECRET never opens the admin API.
//
// Responses:
//   - 401 unauthorized: missing or invalid token, or an unknown user
//   - 403 forbidden:    the user is blocked or is not an admin
//   - 500 internal_error: the guard failed
func AdminAuth(secret string, guard AdminGuard) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "admin API is not configured")
			return
		}
		h := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		tgID, err := ParseAdminToken(key, strings.TrimSpace(raw))
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		o, err := guard(c.Request.Context(), tgID)
		if err != nil {
			LoggerFrom(c).Error().Err(err).Int64("telegram_id", tgID).Msg("admin guard failed")
			abortAuth(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if !o.Authorized {
			switch o.Reason {
			case services.ReasonUnknownUser:
				abortAuth(c, http.StatusUnauthorized, "unauthorized", "unknown user")
			default:
				abortAuth(c, http.StatusForbidden, "forbidden", "admin access required")
			}
			return
		}

		c.Set(ctxKeyUserID, strconv.FormatInt(tgID, 10))
		c.Set(ctxKeyTelegramID, tgID)
		c.Set(ctxKeyAdminUser, o.User)
		c.Next()
	}
}

// AdminUser returns the admin resolved by AdminAuth.
func AdminUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyAdminUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
