package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByAdminOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.7:1234"

	kf := KeyByAdminOrIP()
	if got := kf(c); got != "ip:203.0.113.7" {
		t.Fatalf("ip key = %q", got)
	}
	c.Set("userID", "42")
	if got := kf(c); got != "admin:42" {
		t.Fatalf("admin key = %q", got)
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByAdminOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst not coerced: %d", rl.burst)
	}
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	first := rl.limiter("a")
	if rl.limiter("a") != first {
		t.Fatalf("bucket not reused")
	}

	now = now.Add(rl.ttl)
	rl.lookups = sweepEvery - 1
	if rl.limiter("a") == first {
		t.Fatalf("idle bucket should have been swept before reuse")
	}
	if rl.lookups != 0 || len(rl.buckets) != 1 {
		t.Fatalf("lookups=%d buckets=%d", rl.lookups, len(rl.buckets))
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0, 1, KeyByAdminOrIP())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-Admin"))
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(admin string, replay bool) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Admin", admin)
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		r.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") != "1" {
			t.Fatalf("Retry-After missing")
		}
		return w.Code
	}

	if got := do("1", false); got != http.StatusOK {
		t.Fatalf("first = %d", got)
	}
	if got := do("1", false); got != http.StatusTooManyRequests {
		t.Fatalf("second = %d", got)
	}
	if got := do("1", true); got != http.StatusOK {
		t.Fatalf("replay = %d", got)
	}
	if got := do("2", false); got != http.StatusOK {
		t.Fatalf("other admin = %d", got)
	}
}
