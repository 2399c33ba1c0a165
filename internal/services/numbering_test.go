package services

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCache - потокобезопасный счётчик в памяти вместо Redis.
type fakeCache struct {
	mu       sync.Mutex
	counters map[string]int64
	expires  map[string]time.Duration
	failIncr bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		counters: make(map[string]int64),
		expires:  make(map[string]time.Duration),
	}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.counters[key]
	if !ok {
		return "", fmt.Errorf("ключ %s не найден", key)
	}
	return fmt.Sprintf("%d", v), nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) error { return nil }

func (f *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIncr {
		return 0, fmt.Errorf("redis недоступен")
	}
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeCache) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = expiration
	return true, nil
}

func TestRequestNumberService_Format(t *testing.T) {
	cache := newFakeCache()
	svc := &RequestNumberService{
		cache:      cache,
		logger:     zap.NewNop(),
		prefix:     "REQ",
		counterTTL: time.Hour * 48,
		now:        func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) },
	}

	assert.Equal(t, "REQ-20260901-0001", svc.Next(context.Background()))
	assert.Equal(t, "REQ-20260901-0002", svc.Next(context.Background()))

	// TTL выставлен только при первом номере дня.
	assert.Equal(t, time.Hour*48, cache.expires["reqnum:20260901"])
}

func TestRequestNumberService_ConcurrentUniqueness(t *testing.T) {
	svc := &RequestNumberService{
		cache:      newFakeCache(),
		logger:     zap.NewNop(),
		prefix:     "REQ",
		counterTTL: time.Hour,
		now:        func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) },
	}

	const n = 100
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Next(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for number := range results {
		require.False(t, seen[number], "номер %s выдан дважды", number)
		seen[number] = true
	}
	assert.Len(t, seen, n)
}

func TestRequestNumberService_FallbackOnCacheFailure(t *testing.T) {
	cache := newFakeCache()
	cache.failIncr = true

	svc := &RequestNumberService{
		cache:      cache,
		logger:     zap.NewNop(),
		prefix:     "REQ",
		counterTTL: time.Hour,
		now:        func() time.Time { return time.Date(2026, 9, 1, 15, 4, 5, 0, time.UTC) },
	}

	// Отказ счётчика не проваливает генерацию: выдаётся резервный номер.
	number := svc.Next(context.Background())
	assert.Regexp(t, regexp.MustCompile(`^REQ-20260901-150405-[0-9a-f]{6}$`), number)
}
