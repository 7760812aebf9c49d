package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter counts requests per key in fixed windows
type Counter interface {
	// Incr records one request and returns the count in the current window
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type memoryWindow struct {
	start time.Time
	count int64
}

// MemoryCounter keeps windows in process memory. Counts are per instance
// and reset on restart.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
	incrs   int
}

// NewMemoryCounter creates an in-memory counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow), now: time.Now}
}

const sweepEvery = 1024

func (m *MemoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.incrs++
	if m.incrs%sweepEvery == 0 {
		m.sweep(now, window)
	}

	w, ok := m.windows[key]
	// time.Time.Sub uses the monotonic reading when both values carry one
	if !ok || now.Sub(w.start) >= window {
		w = &memoryWindow{start: now}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}

func (m *MemoryCounter) sweep(now time.Time, window time.Duration) {
	for key, w := range m.windows {
		if now.Sub(w.start) >= window {
			delete(m.windows, key)
		}
	}
}

// Len returns the number of live windows
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// RedisCounter shares windows between instances with INCR and EXPIRE
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCounter creates a counter on an existing client
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := r.prefix + key

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", k, err)
	}
	return incr.Val(), nil
}
