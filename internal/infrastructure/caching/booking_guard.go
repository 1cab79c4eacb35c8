// Package caching provides application-wide caching and related utilities.
package caching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/redis/go-redis/v9"
)

// MemoryBookingGuard prevents a duplicate calendar write for the same key
// within a single process. Claims expire after their ttl.
type MemoryBookingGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

var _ gateways.BookingGuard = (*MemoryBookingGuard)(nil)

// NewMemoryBookingGuard creates a new in-process guard.
func NewMemoryBookingGuard(now func() time.Time) *MemoryBookingGuard {
	if now == nil {
		now = time.Now
	}
	return &MemoryBookingGuard{claims: make(map[string]time.Time), now: now}
}

// Claim reports true if key was free (or expired) and is now held.
// This operation is non-blocking.
func (g *MemoryBookingGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, held := g.claims[key]; held && now.Before(exp) {
		return false, nil
	}
	g.claims[key] = now.Add(ttl)

	// Drop expired claims so the map stays bounded by live bookings.
	for k, exp := range g.claims {
		if !now.Before(exp) {
			delete(g.claims, k)
		}
	}
	return true, nil
}

// RedisBookingGuard is the SETNX guard shared across processes.
type RedisBookingGuard struct {
	client *redis.Client
	prefix string
}

var _ gateways.BookingGuard = (*RedisBookingGuard)(nil)

// NewRedisBookingGuard connects to the redis instance at url.
func NewRedisBookingGuard(ctx context.Context, url string) (*RedisBookingGuard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBookingGuard{client: client, prefix: "tractcall:booking:"}, nil
}

func (g *RedisBookingGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisBookingGuard) Close() error {
	return g.client.Close()
}
