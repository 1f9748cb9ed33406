// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key handling for admin writes such as
// POST /broadcasts. The middleware validates the header and asks a lookup
// whether the same admin already completed the same route with the same key.
// On a hit it records the stored resource id so the handler can answer with
// the existing resource instead of creating a second broadcast, and flags the
// request so the rate limiter lets the replay through.
//
// Records are scoped by (admin telegram id, route template, key). The route
// template comes from c.FullPath(), e.g. "/api/v1/broadcasts".
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey      = "idem.key"
	ctxKeyIdemResource = "idem.resource"
	ctxKeyRateBypass   = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyLookup returns the resource id stored for (userID, scope, key)
// if a record is still valid at now. Lookup errors are treated as a miss.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, found bool, err error)

// IdempotencyOptions bounds accepted keys.
type IdempotencyOptions struct {
	MaxLen  int            // <= 0 means 200
	Pattern *regexp.Regexp // nil means [A-Za-z0-9._~-:]+
}

// Idempotency validates the Idempotency-Key header and resolves replays.
// Requests without the header pass through untouched; a malformed key is
// rejected with 400 bad_idempotency_key.
func Idempotency(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		uid := c.GetString(ctxKeyUserID)
		if lookup != nil && uid != "" {
			rid, found, err := lookup(c.Request.Context(), uid, c.FullPath(), key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			} else if found {
				c.Set(ctxKeyIdemResource, rid)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// ReplayResource returns the resource id of a completed earlier request with
// the same key.
func ReplayResource(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemResource)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
