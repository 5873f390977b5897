// Package memory provides in-memory cache repository implementation
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/smartcrop/advisor/internal/ports/outbound"
)

const defaultTTL = 24 * time.Hour

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// CacheRepository implements outbound.CacheRepository in process memory.
// It is used for sessions when Redis is disabled and in tests.
type CacheRepository struct {
	data map[string]cacheItem
	mu   sync.RWMutex
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

var _ outbound.CacheRepository = (*CacheRepository)(nil)

// NewCacheRepository creates the cache and starts its sweeper, which runs
// until Close.
func NewCacheRepository() *CacheRepository {
	r := &CacheRepository{
		data: make(map[string]cacheItem),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go r.sweep(time.Minute)
	return r
}

// Get returns outbound.ErrCacheMiss for absent or expired keys
func (r *CacheRepository) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	item, ok := r.data[key]
	r.mu.RUnlock()

	if !ok || !r.now().Before(item.expiresAt) {
		return nil, outbound.ErrCacheMiss
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a copy of value. A zero ttl means one day.
func (r *CacheRepository) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	r.mu.Lock()
	r.data[key] = cacheItem{value: stored, expiresAt: r.now().Add(ttl)}
	r.mu.Unlock()
	return nil
}

// Delete removes a key
func (r *CacheRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.data, key)
	r.mu.Unlock()
	return nil
}

// Exists reports whether a live value is stored under key
func (r *CacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.Get(ctx, key)
	return err == nil, nil
}

// DeletePrefix removes every key starting with prefix
func (r *CacheRepository) DeletePrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k := range r.data {
		if strings.HasPrefix(k, prefix) {
			delete(r.data, k)
			n++
		}
	}
	return n
}

// Close stops the sweeper
func (r *CacheRepository) Close() error {
	r.once.Do(func() { close(r.stop) })
	return nil
}

func (r *CacheRepository) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictExpired()
		}
	}
}

func (r *CacheRepository) evictExpired() {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, item := range r.data {
		if !now.Before(item.expiresAt) {
			delete(r.data, k)
		}
	}
}
