package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryCounter_FixedWindows(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := c.Incr(ctx, "ip", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, _ := c.Incr(ctx, "other", time.Minute)
	assert.Equal(t, int64(1), n, "keys are independent")

	now = now.Add(time.Minute)
	n, _ = c.Incr(ctx, "ip", time.Minute)
	assert.Equal(t, int64(1), n, "new window after expiry")
}

func TestMemoryCounter_Sweeps(t *testing.T) {
	now := time.Now()
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < sweepEvery-1; i++ {
		_, _ = c.Incr(ctx, uuid.NewString(), time.Second)
	}
	now = now.Add(2 * time.Second)
	_, _ = c.Incr(ctx, "fresh", time.Second)

	assert.Equal(t, 1, c.Len())
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func newRouter(counter Counter, rule Rule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/limited", Limit(counter, rule, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func get(r http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLimit_RejectsPastLimit(t *testing.T) {
	r := newRouter(NewMemoryCounter(), Rule{Name: "pdf", Limit: 2, Window: 90 * time.Second})

	assert.Equal(t, http.StatusOK, get(r).Code)
	w := get(r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = get(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestLimit_FailsOpen(t *testing.T) {
	r := newRouter(failingCounter{}, Rule{Name: "pdf", Limit: 1, Window: time.Minute})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r).Code)
	}
}

func TestLimit_Disabled(t *testing.T) {
	r := newRouter(failingCounter{}, Rule{Name: "pdf", Limit: 0, Window: time.Minute})
	assert.Equal(t, http.StatusOK, get(r).Code)
}

func TestLimit_CustomKey(t *testing.T) {
	rule := Rule{Name: "pdf", Limit: 1, Window: time.Minute, Key: func(c *gin.Context) string {
		return c.GetHeader("X-Api-Key")
	}}
	r := newRouter(NewMemoryCounter(), rule)

	req := func(key string) int {
		rq := httptest.NewRequest(http.MethodGet, "/limited", nil)
		rq.Header.Set("X-Api-Key", key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, rq)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, req("a"))
	assert.Equal(t, http.StatusOK, req("b"))
	assert.Equal(t, http.StatusTooManyRequests, req("a"))
}

// Runs against a real server when REDIS_ADDR is set
func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	c := NewRedisCounter(client, "test:"+uuid.NewString()+":")
	ctx := context.Background()

	n, err := c.Incr(ctx, "ip", time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "ip", time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := client.TTL(ctx, c.prefix+"ip").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
