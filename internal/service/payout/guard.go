// internal/service/payout/guard.go
package payout

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SweepGuard ensures the daily sweep fires at most once per calendar day,
// surviving process restarts inside the fire window.
type SweepGuard interface {
	// Acquire returns true if this caller won the right to run the sweep
	// for the given day.
	Acquire(ctx context.Context, day string) (bool, error)
}

const sweepKeyPrefix = "payouts:sweep:"

// RedisSweepGuard marks sweep days with a SETNX key so a restarted process
// cannot re-run a sweep that already happened.
type RedisSweepGuard struct {
	client *redis.Client
}

func NewRedisSweepGuard(client *redis.Client) *RedisSweepGuard {
	return &RedisSweepGuard{client: client}
}

func (g *RedisSweepGuard) Acquire(ctx context.Context, day string) (bool, error) {
	return g.client.SetNX(ctx, sweepKeyPrefix+day, time.Now().Format(time.RFC3339), 48*time.Hour).Result()
}

// MemorySweepGuard is the in-process fallback used in tests and when no
// redis is configured. It does not survive restarts.
type MemorySweepGuard struct {
	mu   sync.Mutex
	days map[string]struct{}
}

func NewMemorySweepGuard() *MemorySweepGuard {
	return &MemorySweepGuard{days: make(map[string]struct{})}
}

func (g *MemorySweepGuard) Acquire(_ context.Context, day string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.days[day]; ok {
		return false, nil
	}
	g.days[day] = struct{}{}
	return true, nil
}
